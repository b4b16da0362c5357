package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seir-sim/seir-sim/server"
	"github.com/seir-sim/seir-sim/sim"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServeConfig_Defaults(t *testing.T) {
	cfg, err := LoadServeConfig(viper.New(), "")
	require.NoError(t, err)

	def := server.DefaultConfig()
	assert.Equal(t, "127.0.0.1:8080", cfg.Address)
	assert.Equal(t, "/ws/", cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.Session.ClientTimeout)
	assert.Equal(t, 8, cfg.Session.MaxPendingSolves)
	assert.Equal(t, sim.FormatMap, cfg.Session.Format)
	assert.Equal(t, 3*time.Second, cfg.GracePeriod)
	assert.Equal(t, 1e-10, cfg.Solver.RelTol)
	assert.Equal(t, 1e-10, cfg.Solver.AbsTol)
	assert.Equal(t, def.Solver, cfg.Solver)
}

func TestLoadServeConfig_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "serve.yaml", `
addr: 0.0.0.0:9000
path: /sim/
heartbeat_interval: 2s
client_timeout: 4s
max_pending: 1
format: records
allowed_origins: ["https://app.example"]
rel_tol: 1.0e-8
`)

	cfg, err := LoadServeConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Address)
	assert.Equal(t, "/sim/", cfg.Path)
	assert.Equal(t, 2*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 4*time.Second, cfg.Session.ClientTimeout)
	assert.Equal(t, 1, cfg.Session.MaxPendingSolves)
	assert.Equal(t, sim.FormatRecords, cfg.Session.Format)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 1e-8, cfg.Solver.RelTol)
	assert.Equal(t, 1e-10, cfg.Solver.AbsTol)
}

func TestLoadServeConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "serve.yaml", "addr: 0.0.0.0:9000\n")
	t.Setenv("SEIR_SIM_ADDR", "127.0.0.1:7000")
	t.Setenv("SEIR_SIM_CLIENT_TIMEOUT", "30s")

	cfg, err := LoadServeConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.Session.ClientTimeout)
}

func TestLoadServeConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"explicit file missing", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "absent.yaml")
		}},
		{"unknown format", func(t *testing.T) string {
			return writeFile(t, "serve.yaml", "format: csv\n")
		}},
		{"zero timeout", func(t *testing.T) string {
			return writeFile(t, "serve.yaml", "client_timeout: 0s\n")
		}},
		{"relative path", func(t *testing.T) string {
			return writeFile(t, "serve.yaml", "path: ws\n")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadServeConfig(viper.New(), tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("warn", "json"))
	assert.NoError(t, setupLogging("warn", "text"))
	assert.Error(t, setupLogging("loud", "text"))
	assert.Error(t, setupLogging("warn", "xml"))
}

func TestServeFlags_SolverKeysBound(t *testing.T) {
	flags := serveCmd.Flags()
	require.NoError(t, flags.Set("rel-tol", "1e-8"))
	require.NoError(t, flags.Set("output-step", "0.5"))
	t.Cleanup(func() {
		_ = flags.Set("rel-tol", "1e-10")
		_ = flags.Set("output-step", "0")
	})

	cfg, err := LoadServeConfig(serveViper, "")
	require.NoError(t, err)

	assert.Equal(t, 1e-8, cfg.Solver.RelTol)
	assert.Equal(t, 1e-10, cfg.Solver.AbsTol)
	assert.Equal(t, 0.5, cfg.Solver.OutputStep)
}
