package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// Enablement states understood by the package scope.
const (
	PackageEnabled  = "enabled"
	PackageDisabled = "disabled-user"
)

// packageScope drives per-user package enablement. The value space is
// "enabled", "disabled-user", or Absent (not installed for the user).
type packageScope struct {
	user int
}

func (p *packageScope) userArg() string {
	return fmt.Sprintf("%d", p.user)
}

// listedPackage reports whether a "pm list packages" output names pkg
// exactly. pm matches by substring, so the filter output must be
// re-checked line by line.
func listedPackage(out, pkg string) bool {
	want := "package:" + pkg
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

func (p *packageScope) Get(ctx context.Context, sys remote.System, name string) (ir.Value, error) {
	installed, err := sys.Shell(ctx, "pm", "list", "packages", "--user", p.userArg(), name)
	if err != nil {
		return ir.Absent, fmt.Errorf("failed to query package %s: %w", name, err)
	}
	if !listedPackage(installed, name) {
		return ir.Absent, nil
	}

	disabled, err := sys.Shell(ctx, "pm", "list", "packages", "--user", p.userArg(), "-d", name)
	if err != nil {
		return ir.Absent, fmt.Errorf("failed to query package state %s: %w", name, err)
	}
	if listedPackage(disabled, name) {
		return ir.NewValue(PackageDisabled), nil
	}
	return ir.NewValue(PackageEnabled), nil
}

func (p *packageScope) Set(ctx context.Context, sys remote.System, name string, value ir.Value) error {
	if !value.Present() {
		// -k keeps app data so a revert can reinstall without loss
		out, err := sys.Shell(ctx, "pm", "uninstall", "-k", "--user", p.userArg(), name)
		if err != nil {
			return fmt.Errorf("failed to uninstall %s: %w", name, err)
		}
		if !strings.Contains(out, "Success") {
			return rejected("pm uninstall "+name, out)
		}
		return nil
	}

	switch value.Raw() {
	case PackageEnabled:
		// reinstall first in case the package was removed for the user;
		// install-existing succeeds when it is already installed
		_, _ = sys.Shell(ctx, "cmd", "package", "install-existing", "--user", p.userArg(), name)

		out, err := sys.Shell(ctx, "pm", "enable", "--user", p.userArg(), name)
		if err != nil {
			return fmt.Errorf("failed to enable %s: %w", name, err)
		}
		if !strings.Contains(out, "new state: enabled") {
			return rejected("pm enable "+name, out)
		}
		return nil

	case PackageDisabled:
		out, err := sys.Shell(ctx, "pm", "disable-user", "--user", p.userArg(), name)
		if err != nil {
			return fmt.Errorf("failed to disable %s: %w", name, err)
		}
		if !strings.Contains(out, "new state: disabled") {
			return rejected("pm disable-user "+name, out)
		}
		return nil

	default:
		return fmt.Errorf("unsupported package state %q for %s (want %q, %q or null)",
			value.Raw(), name, PackageEnabled, PackageDisabled)
	}
}

// Applicable reports whether the device knows the package at all,
// including packages uninstalled for the user but still present on the
// system image.
func (p *packageScope) Applicable(ctx context.Context, sys remote.System, name string) (bool, error) {
	out, err := sys.Shell(ctx, "pm", "list", "packages", "-u", "--user", p.userArg(), name)
	if err != nil {
		return false, fmt.Errorf("failed to query package %s: %w", name, err)
	}
	return listedPackage(out, name), nil
}

func (p *packageScope) RevertCommand(serial, name string, original ir.Value) string {
	user := p.userArg()

	if !original.Present() {
		return revertLine(serial, fmt.Sprintf("pm uninstall -k --user %s %s", user, name))
	}

	// install-existing first so the state change applies even when the
	// run uninstalled the package; a no-op when it is still installed
	reinstall := fmt.Sprintf("cmd package install-existing --user %s %s >/dev/null 2>&1", user, name)
	switch original.Raw() {
	case PackageDisabled:
		return revertLine(serial, fmt.Sprintf("%s; pm disable-user --user %s %s", reinstall, user, name))
	default:
		return revertLine(serial, fmt.Sprintf("%s; pm enable --user %s %s", reinstall, user, name))
	}
}
