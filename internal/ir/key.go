package ir

import "fmt"

// Well-known scope names understood by the default store registry.
const (
	ScopeSettingsGlobal = "settings.global"
	ScopeSettingsSecure = "settings.secure"
	ScopeSettingsSystem = "settings.system"
	ScopeDeviceConfig   = "device_config"
	ScopePackage        = "package"
	ScopeSysprop        = "sysprop"
)

// Key addresses a single remote-controlled value on a device.
// Keys are case-sensitive and unique within a run.
type Key struct {
	Scope string
	Name  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Scope, k.Name)
}

// Value is a device value or the distinguished absent marker.
// Absent means "currently unset / not installed" and is a first-class
// value, not an error: many device stores distinguish unset from "".
type Value struct {
	raw     string
	present bool
}

// Absent is the unset/deleted value.
var Absent = Value{}

// NewValue wraps a concrete string value.
func NewValue(s string) Value {
	return Value{raw: s, present: true}
}

// Present reports whether the value is set.
func (v Value) Present() bool { return v.present }

// Raw returns the underlying string. It is "" for Absent; callers that
// need to distinguish must check Present first.
func (v Value) Raw() string { return v.raw }

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	return v.raw
}

func (v Value) Equal(o Value) bool {
	return v.present == o.present && v.raw == o.raw
}
