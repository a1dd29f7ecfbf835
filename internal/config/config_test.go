package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Database.DSN = "postgres://localhost/weatheredge"
	cfg.Cities = DefaultCities()
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestSignalActiveSet(t *testing.T) {
	m := MonitorConfig{ActiveSignals: []string{"guaranteed_loss", "take_profit"}}
	assert.True(t, m.SignalActive("guaranteed_loss"))
	assert.True(t, m.SignalActive("take_profit"))
	assert.False(t, m.SignalActive("edge_gone"))
	assert.False(t, m.SignalActive("guaranteed_win"))

	// Empty set: every signal is log-only.
	assert.False(t, MonitorConfig{}.SignalActive("guaranteed_loss"))

	// Defaults arm all four.
	def := Default().Monitor
	for _, sig := range MonitorSignals {
		assert.True(t, def.SignalActive(sig), sig)
	}
}

func TestValidateRejectsUnknownSignal(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.ActiveSignals = []string{"guaranteed_loss", "stop_loss"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_loss")
}
