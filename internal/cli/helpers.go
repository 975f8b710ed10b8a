package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/droidtune-io/droidtune/internal/artifact"
	"github.com/droidtune-io/droidtune/internal/engine"
	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

var noColor bool

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorize returns the ANSI code, or "" when color is disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// parseKey splits "scope:name" into a Key.
func parseKey(s string) (ir.Key, error) {
	scope, name, ok := strings.Cut(s, ":")
	if !ok || scope == "" || name == "" {
		return ir.Key{}, fmt.Errorf("invalid key %q: expected scope:name (e.g. settings.global:adb_enabled)", s)
	}
	return ir.Key{Scope: scope, Name: name}, nil
}

// pickDevice chooses the target serial from the connected device list.
// An explicit request must match a usable device; with no request there
// must be exactly one.
func pickDevice(devices []remote.Device, requested string) (string, error) {
	if requested != "" {
		for _, d := range devices {
			if d.Serial != requested {
				continue
			}
			if d.State != "device" {
				return "", fmt.Errorf("device %s is %s, not usable", d.Serial, d.State)
			}
			return d.Serial, nil
		}
		return "", fmt.Errorf("device %s is not connected", requested)
	}

	var usable []remote.Device
	for _, d := range devices {
		if d.State == "device" {
			usable = append(usable, d)
		}
	}
	switch len(usable) {
	case 0:
		return "", fmt.Errorf("no usable device connected")
	case 1:
		return usable[0].Serial, nil
	default:
		serials := make([]string, len(usable))
		for i, d := range usable {
			serials[i] = d.Serial
		}
		return "", fmt.Errorf("multiple devices connected (%s); pick one with -s", strings.Join(serials, ", "))
	}
}

// resolveSerial lists connected devices and picks the target.
func resolveSerial(ctx context.Context, adbPath, requested string) (string, error) {
	devices, err := remote.Devices(ctx, adbPath)
	if err != nil {
		return "", err
	}
	return pickDevice(devices, requested)
}

// outcomeSymbol mirrors the plan-style change markers.
func outcomeSymbol(o ir.Outcome) string {
	switch o {
	case ir.OutcomeApplied:
		return "+"
	case ir.OutcomeFailed:
		return "!"
	case ir.OutcomeSimulated:
		return "~"
	default:
		return "-"
	}
}

func outcomeColor(o ir.Outcome) string {
	switch o {
	case ir.OutcomeApplied:
		return colorGreen
	case ir.OutcomeFailed:
		return colorRed
	case ir.OutcomeSimulated:
		return colorYellow
	default:
		return colorReset
	}
}

// renderEvent prints one per-key progress line.
func renderEvent(ev engine.Event) {
	line := fmt.Sprintf("  %s %-9s %s = %s", outcomeSymbol(ev.Outcome), ev.Outcome, ev.Key, ev.Requested)
	if ev.Message != "" {
		line += "  (" + ev.Message + ")"
	}
	fmt.Printf("%s%s%s\n", colorize(outcomeColor(ev.Outcome)), line, colorize(colorReset))
}

// renderSummary prints the end-of-run counts.
func renderSummary(s ir.Summary) {
	fmt.Println("\nRun Summary:")
	fmt.Printf("  Applied:   %d\n", s.Applied)
	fmt.Printf("  Skipped:   %d\n", s.Skipped)
	fmt.Printf("  Failed:    %d\n", s.Failed)
	fmt.Printf("  Simulated: %d\n", s.Simulated)
}

// readArtifact loads a run artifact, transparently decrypting files
// fetched back from encrypted publication.
func readArtifact(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return artifact.Decrypt(content)
}
