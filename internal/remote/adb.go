package remote

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/droidtune-io/droidtune/internal/logging"
)

// DefaultCommandTimeout bounds a single device round-trip. Individual
// commands are short; anything slower is treated as a transport fault.
const DefaultCommandTimeout = 2 * time.Minute

// ADB talks to one device through the adb binary.
type ADB struct {
	path    string // adb binary, "" means $PATH lookup
	serial  string
	timeout time.Duration
}

// NewADB binds a transport to a device serial. An empty path resolves
// "adb" from $PATH at execution time.
func NewADB(path, serial string) *ADB {
	return &ADB{path: path, serial: serial, timeout: DefaultCommandTimeout}
}

func (a *ADB) Serial() string { return a.serial }

func (a *ADB) bin() string {
	if a.path != "" {
		return a.path
	}
	return "adb"
}

// Shell runs "adb -s <serial> shell <args...>" and returns trimmed
// combined output. Non-zero exits come back as KindRejected with the
// device's output attached; anything that kept the command from
// reaching the device is KindTransport.
func (a *ADB) Shell(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-s", a.serial, "shell"}, args...)
	return a.run(ctx, full...)
}

func (a *ADB) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	op := "adb " + strings.Join(args, " ")
	logging.Debug("running device command", "cmd", op)

	cmd := exec.CommandContext(ctx, a.bin(), args...)
	cmd.Env = os.Environ()

	raw, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(raw))

	if ctx.Err() != nil {
		return out, &Error{Kind: KindTransport, Op: op, Output: out, Err: ctx.Err()}
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// adb itself reports device loss through stderr text
			if isDeviceLost(out) {
				return out, &Error{Kind: KindTransport, Op: op, Output: out, Err: err}
			}
			return out, &Error{Kind: KindRejected, Op: op, Output: out, Err: err}
		}
		return out, &Error{Kind: KindTransport, Op: op, Output: out, Err: err}
	}
	return out, nil
}

// isDeviceLost recognizes adb's connection-level complaints, which
// surface as command failures but mean the device is gone.
func isDeviceLost(out string) bool {
	lower := strings.ToLower(out)
	for _, marker := range []string{
		"device offline",
		"device unauthorized",
		"device not found",
		"no devices/emulators found",
		"cannot connect to daemon",
		"connection reset",
		"protocol fault",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Device is one row of "adb devices -l".
type Device struct {
	Serial string
	State  string
	Model  string
}

// Devices lists devices known to the local adb server.
func Devices(ctx context.Context, path string) ([]Device, error) {
	a := &ADB{path: path, timeout: DefaultCommandTimeout}
	// start-server is idempotent; ignore its output
	_, _ = a.run(ctx, "start-server")

	out, err := a.run(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return ParseDevices(out), nil
}

// ParseDevices parses "adb devices -l" output.
func ParseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{Serial: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			if v, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = v
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// Info describes the connected device, captured into run metadata.
type Info struct {
	Model         string
	Manufacturer  string
	Release       string
	SecurityPatch string
}

// DeviceInfo reads identifying properties from the device.
func DeviceInfo(ctx context.Context, sys System) (Info, error) {
	props := map[string]*string{}
	info := Info{}
	props["ro.product.model"] = &info.Model
	props["ro.product.manufacturer"] = &info.Manufacturer
	props["ro.build.version.release"] = &info.Release
	props["ro.build.version.security_patch"] = &info.SecurityPatch

	for name, dst := range props {
		out, err := sys.Shell(ctx, "getprop", name)
		if err != nil {
			return Info{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		*dst = out
	}
	return info, nil
}
