package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/remote"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		input    string
		expected ir.Key
		wantErr  bool
	}{
		{"settings.global:adb_enabled", ir.Key{Scope: "settings.global", Name: "adb_enabled"}, false},
		{"package:com.example.app", ir.Key{Scope: "package", Name: "com.example.app"}, false},
		{"device_config:netd/flag", ir.Key{Scope: "device_config", Name: "netd/flag"}, false},
		{"noscope", ir.Key{}, true},
		{":name", ir.Key{}, true},
		{"scope:", ir.Key{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			key, err := parseKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestPickDevice(t *testing.T) {
	devices := []remote.Device{
		{Serial: "emulator-5554", State: "device", Model: "sdk_gphone64"},
		{Serial: "R58M123ABC", State: "device", Model: "SM_G991B"},
		{Serial: "OFFLINE1", State: "offline"},
		{Serial: "UNAUTH1", State: "unauthorized"},
	}

	t.Run("explicit serial", func(t *testing.T) {
		serial, err := pickDevice(devices, "R58M123ABC")
		require.NoError(t, err)
		assert.Equal(t, "R58M123ABC", serial)
	})

	t.Run("explicit serial not usable", func(t *testing.T) {
		_, err := pickDevice(devices, "UNAUTH1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unauthorized")
	})

	t.Run("explicit serial not connected", func(t *testing.T) {
		_, err := pickDevice(devices, "MISSING")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("single usable device auto-selected", func(t *testing.T) {
		serial, err := pickDevice([]remote.Device{
			{Serial: "emulator-5554", State: "device"},
			{Serial: "OFFLINE1", State: "offline"},
		}, "")
		require.NoError(t, err)
		assert.Equal(t, "emulator-5554", serial)
	})

	t.Run("ambiguous without serial", func(t *testing.T) {
		_, err := pickDevice(devices, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple devices")
	})

	t.Run("nothing connected", func(t *testing.T) {
		_, err := pickDevice(nil, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable device")
	})
}

func TestColorize(t *testing.T) {
	// When noColor is false, colorize should return the code
	noColor = false
	assert.Equal(t, "\033[31m", colorize("\033[31m"))

	// When noColor is true, colorize should return empty string
	noColor = true
	assert.Equal(t, "", colorize("\033[31m"))

	// Reset
	noColor = false
}

func TestOutcomeRendering(t *testing.T) {
	assert.Equal(t, "+", outcomeSymbol(ir.OutcomeApplied))
	assert.Equal(t, "!", outcomeSymbol(ir.OutcomeFailed))
	assert.Equal(t, "~", outcomeSymbol(ir.OutcomeSimulated))
	assert.Equal(t, "-", outcomeSymbol(ir.OutcomeSkipped))

	assert.Equal(t, colorGreen, outcomeColor(ir.OutcomeApplied))
	assert.Equal(t, colorRed, outcomeColor(ir.OutcomeFailed))
	assert.Equal(t, colorYellow, outcomeColor(ir.OutcomeSimulated))
	assert.Equal(t, colorReset, outcomeColor(ir.OutcomeSkipped))
}
