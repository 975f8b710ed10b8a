// Package store exposes a typed key-addressed view over the device.
// Each scope handler hides the command syntax of one class of value
// (settings, device_config flags, package enablement, sysprops) behind
// Get/Set, and knows how to render the inverse shell command for a
// recorded original value.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// Scope reads and writes one class of device value.
type Scope interface {
	// Get reads the current value. A missing key is ir.Absent, not an
	// error; errors are reserved for transport/command failures.
	Get(ctx context.Context, sys remote.System, name string) (ir.Value, error)

	// Set writes the value; ir.Absent performs a delete/unset.
	Set(ctx context.Context, sys remote.System, name string, value ir.Value) error

	// Applicable reports whether the key exists on / applies to this
	// device at all (e.g. the package is known to it).
	Applicable(ctx context.Context, sys remote.System, name string) (bool, error)

	// RevertCommand renders the standalone adb command that restores
	// name to original on the device identified by serial.
	RevertCommand(serial, name string, original ir.Value) string
}

// Registry maps scope names to handlers.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]Scope
}

func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]Scope)}
}

// Register adds a handler. Later registrations win, which lets tests
// swap in fakes.
func (r *Registry) Register(name string, s Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[name] = s
}

// Get returns a registered handler.
func (r *Registry) Get(name string) (Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[name]
	if !ok {
		return nil, fmt.Errorf("unknown scope: %s", name)
	}
	return s, nil
}

// DefaultRegistry registers the built-in scopes for the given Android
// user id.
func DefaultRegistry(user int) *Registry {
	r := NewRegistry()
	r.Register(ir.ScopeSettingsGlobal, &settingsScope{namespace: "global"})
	r.Register(ir.ScopeSettingsSecure, &settingsScope{namespace: "secure"})
	r.Register(ir.ScopeSettingsSystem, &settingsScope{namespace: "system"})
	r.Register(ir.ScopeDeviceConfig, &deviceConfigScope{})
	r.Register(ir.ScopePackage, &packageScope{user: user})
	r.Register(ir.ScopeSysprop, &syspropScope{})
	return r
}

// Store dispatches key operations to scope handlers over one device.
// No value is ever cached: the device may be mutated by other actors
// between calls, so every Get is a fresh round-trip.
type Store struct {
	sys remote.System
	reg *Registry
}

func New(sys remote.System, reg *Registry) *Store {
	return &Store{sys: sys, reg: reg}
}

func (s *Store) Get(ctx context.Context, key ir.Key) (ir.Value, error) {
	sc, err := s.reg.Get(key.Scope)
	if err != nil {
		return ir.Absent, err
	}
	return sc.Get(ctx, s.sys, key.Name)
}

func (s *Store) Set(ctx context.Context, key ir.Key, value ir.Value) error {
	sc, err := s.reg.Get(key.Scope)
	if err != nil {
		return err
	}
	return sc.Set(ctx, s.sys, key.Name, value)
}

func (s *Store) Applicable(ctx context.Context, key ir.Key) (bool, error) {
	sc, err := s.reg.Get(key.Scope)
	if err != nil {
		return false, err
	}
	return sc.Applicable(ctx, s.sys, key.Name)
}

// RevertCommand renders the inverse command for a ledger entry.
func (s *Store) RevertCommand(key ir.Key, original ir.Value) (string, error) {
	sc, err := s.reg.Get(key.Scope)
	if err != nil {
		return "", err
	}
	return sc.RevertCommand(s.sys.Serial(), key.Name, original), nil
}

// shSafe reports whether s can appear unquoted in a shell command.
func shSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("._-/:=@%+,", r):
		default:
			return false
		}
	}
	return true
}

// shQuote quotes s for a POSIX shell. Strings of safe characters pass
// through bare so rendered commands stay readable.
func shQuote(s string) string {
	if shSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// revertLine renders one revert.sh line. adb joins its trailing
// arguments with spaces and has the device shell re-parse the result,
// so the device command must travel as a single host-quoted argument:
// the host shell strips the outer quote layer, and values quoted with
// shQuote inside deviceCmd reach the device shell intact.
func revertLine(serial, deviceCmd string) string {
	return fmt.Sprintf("adb -s %s shell %s", serial, shQuote(deviceCmd))
}

// looksLikeFailure recognizes commands that exit zero but report an
// error in their output, which pm and settings both do.
func looksLikeFailure(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "exception") ||
		strings.Contains(lower, "failure") ||
		strings.Contains(lower, "error:") ||
		strings.Contains(lower, "bad arguments")
}

// rejected builds the error for a refused write.
func rejected(op, out string) error {
	return &remote.Error{Kind: remote.KindRejected, Op: op, Output: out}
}
