package store

import (
	"context"
	"fmt"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// syspropScope drives getprop/setprop. Properties cannot be deleted,
// only cleared, so Absent round-trips as the empty string.
type syspropScope struct{}

func (s *syspropScope) Get(ctx context.Context, sys remote.System, name string) (ir.Value, error) {
	out, err := sys.Shell(ctx, "getprop", name)
	if err != nil {
		return ir.Absent, fmt.Errorf("failed to read property %s: %w", name, err)
	}
	if out == "" {
		return ir.Absent, nil
	}
	return ir.NewValue(out), nil
}

func (s *syspropScope) Set(ctx context.Context, sys remote.System, name string, value ir.Value) error {
	raw := ""
	if value.Present() {
		raw = value.Raw()
	}

	out, err := sys.Shell(ctx, "setprop", name, shQuote(raw))
	if err != nil {
		return fmt.Errorf("failed to set property %s: %w", name, err)
	}
	if looksLikeFailure(out) {
		return rejected("setprop "+name, out)
	}
	return nil
}

func (s *syspropScope) Applicable(ctx context.Context, sys remote.System, name string) (bool, error) {
	return true, nil
}

func (s *syspropScope) RevertCommand(serial, name string, original ir.Value) string {
	raw := ""
	if original.Present() {
		raw = original.Raw()
	}
	return revertLine(serial, fmt.Sprintf("setprop %s %s", name, shQuote(raw)))
}
