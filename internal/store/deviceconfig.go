package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// deviceConfigScope drives the device_config service. Key names are
// "namespace/key", mirroring how device_config addresses flags.
type deviceConfigScope struct{}

func splitFlag(name string) (namespace, key string, err error) {
	namespace, key, ok := strings.Cut(name, "/")
	if !ok || namespace == "" || key == "" {
		return "", "", fmt.Errorf("invalid device_config key %q: want namespace/key", name)
	}
	return namespace, key, nil
}

func (d *deviceConfigScope) Get(ctx context.Context, sys remote.System, name string) (ir.Value, error) {
	ns, key, err := splitFlag(name)
	if err != nil {
		return ir.Absent, err
	}

	out, err := sys.Shell(ctx, "device_config", "get", ns, key)
	if err != nil {
		return ir.Absent, fmt.Errorf("failed to read flag %s: %w", name, err)
	}
	if out == "null" {
		return ir.Absent, nil
	}
	return ir.NewValue(out), nil
}

func (d *deviceConfigScope) Set(ctx context.Context, sys remote.System, name string, value ir.Value) error {
	ns, key, err := splitFlag(name)
	if err != nil {
		return err
	}

	if !value.Present() {
		out, err := sys.Shell(ctx, "device_config", "delete", ns, key)
		if err != nil {
			return fmt.Errorf("failed to delete flag %s: %w", name, err)
		}
		if looksLikeFailure(out) {
			return rejected("device_config delete "+name, out)
		}
		return nil
	}

	out, err := sys.Shell(ctx, "device_config", "put", ns, key, shQuote(value.Raw()))
	if err != nil {
		return fmt.Errorf("failed to put flag %s: %w", name, err)
	}
	if looksLikeFailure(out) {
		return rejected("device_config put "+name, out)
	}
	return nil
}

func (d *deviceConfigScope) Applicable(ctx context.Context, sys remote.System, name string) (bool, error) {
	_, _, err := splitFlag(name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (d *deviceConfigScope) RevertCommand(serial, name string, original ir.Value) string {
	ns, key, err := splitFlag(name)
	if err != nil {
		// ledger entries only exist for keys that parsed during Get
		return fmt.Sprintf("# unrenderable device_config key %q", name)
	}
	if !original.Present() {
		return revertLine(serial, fmt.Sprintf("device_config delete %s %s", ns, key))
	}
	return revertLine(serial, fmt.Sprintf("device_config put %s %s %s",
		ns, key, shQuote(original.Raw())))
}
