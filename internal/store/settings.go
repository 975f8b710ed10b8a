package store

import (
	"context"
	"fmt"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// settingsScope drives one namespace of the settings provider
// (global, secure or system). "settings get" prints the literal string
// "null" for keys that were never set.
type settingsScope struct {
	namespace string
}

func (s *settingsScope) Get(ctx context.Context, sys remote.System, name string) (ir.Value, error) {
	out, err := sys.Shell(ctx, "settings", "get", s.namespace, name)
	if err != nil {
		return ir.Absent, fmt.Errorf("failed to read setting %s/%s: %w", s.namespace, name, err)
	}
	if out == "null" {
		return ir.Absent, nil
	}
	return ir.NewValue(out), nil
}

func (s *settingsScope) Set(ctx context.Context, sys remote.System, name string, value ir.Value) error {
	if !value.Present() {
		out, err := sys.Shell(ctx, "settings", "delete", s.namespace, name)
		if err != nil {
			return fmt.Errorf("failed to delete setting %s/%s: %w", s.namespace, name, err)
		}
		// "Deleted 0 rows" is fine: unset is idempotent
		if looksLikeFailure(out) {
			return rejected("settings delete "+s.namespace+" "+name, out)
		}
		return nil
	}

	out, err := sys.Shell(ctx, "settings", "put", s.namespace, name, shQuote(value.Raw()))
	if err != nil {
		return fmt.Errorf("failed to put setting %s/%s: %w", s.namespace, name, err)
	}
	if looksLikeFailure(out) {
		return rejected("settings put "+s.namespace+" "+name, out)
	}
	return nil
}

func (s *settingsScope) Applicable(ctx context.Context, sys remote.System, name string) (bool, error) {
	// settings keys can always be created
	return true, nil
}

func (s *settingsScope) RevertCommand(serial, name string, original ir.Value) string {
	if !original.Present() {
		return revertLine(serial, fmt.Sprintf("settings delete %s %s", s.namespace, name))
	}
	return revertLine(serial, fmt.Sprintf("settings put %s %s %s",
		s.namespace, name, shQuote(original.Raw())))
}
