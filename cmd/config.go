package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/seir-sim/seir-sim/server"
	"github.com/seir-sim/seir-sim/sim"
)

// Configuration keys. Each one can be set in the config file, through a
// SEIR_SIM_<KEY> environment variable, or with the matching serve flag.
const (
	keyAddr              = "addr"
	keyPath              = "path"
	keyHeartbeatInterval = "heartbeat_interval"
	keyClientTimeout     = "client_timeout"
	keyMaxPending        = "max_pending"
	keyFormat            = "format"
	keyGracePeriod       = "grace_period"
	keyAllowedOrigins    = "allowed_origins"
	keyRelTol            = "rel_tol"
	keyAbsTol            = "abs_tol"
	keyOutputStep        = "output_step"

	envPrefix  = "SEIR_SIM"
	configName = "seir-sim"
	configType = "yaml"
)

// LoadServeConfig resolves the serve configuration from v. An explicit path
// must exist; without one, seir-sim.yaml in the working directory is read
// when present.
func LoadServeConfig(v *viper.Viper, path string) (server.Config, error) {
	if v == nil {
		v = viper.New()
	}
	def := server.DefaultConfig()
	v.SetDefault(keyAddr, def.Address)
	v.SetDefault(keyPath, def.Path)
	v.SetDefault(keyHeartbeatInterval, def.Session.HeartbeatInterval)
	v.SetDefault(keyClientTimeout, def.Session.ClientTimeout)
	v.SetDefault(keyMaxPending, def.Session.MaxPendingSolves)
	v.SetDefault(keyFormat, string(def.Session.Format))
	v.SetDefault(keyGracePeriod, def.GracePeriod)
	v.SetDefault(keyAllowedOrigins, []string{})
	v.SetDefault(keyRelTol, def.Solver.RelTol)
	v.SetDefault(keyAbsTol, def.Solver.AbsTol)
	v.SetDefault(keyOutputStep, def.Solver.OutputStep)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return server.Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return server.Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	format, err := sim.ParseResultFormat(v.GetString(keyFormat))
	if err != nil {
		return server.Config{}, err
	}

	cfg := def
	cfg.Address = v.GetString(keyAddr)
	cfg.Path = v.GetString(keyPath)
	cfg.GracePeriod = v.GetDuration(keyGracePeriod)
	cfg.AllowedOrigins = v.GetStringSlice(keyAllowedOrigins)
	cfg.Session.HeartbeatInterval = v.GetDuration(keyHeartbeatInterval)
	cfg.Session.ClientTimeout = v.GetDuration(keyClientTimeout)
	cfg.Session.MaxPendingSolves = v.GetInt(keyMaxPending)
	cfg.Session.Format = format
	cfg.Solver.RelTol = v.GetFloat64(keyRelTol)
	cfg.Solver.AbsTol = v.GetFloat64(keyAbsTol)
	cfg.Solver.OutputStep = v.GetFloat64(keyOutputStep)

	if err := cfg.Validate(); err != nil {
		return server.Config{}, err
	}
	return cfg, nil
}
