package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PollInterval      time.Duration `envconfig:"TEST_POLL_INTERVAL" default:"50ms"`
	ReconcileInterval time.Duration `envconfig:"TEST_RECONCILE_INTERVAL" default:"50ms"`
	RestartInterval   time.Duration `envconfig:"TEST_RESTART_INTERVAL" default:"200ms"`
	// TEST_SCENARIO_TIMEOUT bounds how long a scenario waits for the fanout
	// to settle before failing, raise it on slow CI runners
	ScenarioTimeout time.Duration `envconfig:"TEST_SCENARIO_TIMEOUT" default:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
