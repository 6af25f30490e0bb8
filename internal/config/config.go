// Package config loads the process-wide settings described in spec.md §6
// from the environment, the same way the teacher's reinforcement.FromYaml
// loaded a TrainingConfig from a file: bind every key through viper and read
// it into a plain struct, rather than scattering os.Getenv calls.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the configuration record the core consumes; the CLI surface
// that reads the environment is kept external per spec.md §6, this is the
// shape it must hand to the core.
type Config struct {
	Host     string `mapstructure:"host"`
	Token    string `mapstructure:"token"`
	Token2   string `mapstructure:"token2"`
	DualAgent bool  `mapstructure:"dual_agent"`

	// DebugAddr/DebugAddr2 serve internal/debugserver's live belief view
	// for the first/second agent; empty disables it for that agent.
	DebugAddr  string `mapstructure:"debug_addr"`
	DebugAddr2 string `mapstructure:"debug_addr2"`

	OptionGenerationInterval time.Duration `mapstructure:"option_generation_interval"`
	MaxCarriedParcels        int           `mapstructure:"max_carried_parcels"`
	MaxDistanceForRandomMove float64       `mapstructure:"max_distance_for_random_move"`
	MaxRetryCommonDelivery   int           `mapstructure:"max_retry_common_delivery"`
	LogLevel                 string        `mapstructure:"log_level"`

	// PDDLEnabled selects the symbolic replanner (internal/plan.GoToPDDLFactory)
	// in place of the default GoTo plan (spec.md §4.4, §9). PDDLSolverPath is
	// the external solver binary it shells out to; PDDLProblemDir is where it
	// writes each problem file. Both are ignored when PDDLEnabled is false.
	PDDLEnabled    bool   `mapstructure:"pddl_enabled"`
	PDDLSolverPath string `mapstructure:"pddl_solver_path"`
	PDDLProblemDir string `mapstructure:"pddl_problem_dir"`
}

// defaults mirrors the table in spec.md §6.
var defaults = map[string]interface{}{
	"dual_agent":                     false,
	"option_generation_interval_ms":  200,
	"max_carried_parcels":            4,
	"max_distance_for_random_move":   5,
	"max_retry_common_delivery":      10,
	"log_level":                      "INFO",
	"pddl_enabled":                   false,
	"pddl_problem_dir":               "/tmp",
}

// Load reads HOST, TOKEN, TOKEN_2, DUAL_AGENT, OPTION_GENERATION_INTERVAL,
// MAX_CARRIED_PARCELS, MAX_DISTANCE_FOR_RANDOM_MOVE,
// MAX_RETRY_COMMON_DELIVERY, LOG_LEVEL, PDDL_ENABLED, PDDL_SOLVER_PATH, and
// PDDL_PROBLEM_DIR from the environment.
func Load() (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix("")
	for k, v := range defaults {
		vp.SetDefault(k, v)
	}

	bindings := map[string]string{
		"host":                          "HOST",
		"token":                         "TOKEN",
		"token2":                        "TOKEN_2",
		"dual_agent":                    "DUAL_AGENT",
		"debug_addr":                    "DEBUG_ADDR",
		"debug_addr2":                   "DEBUG_ADDR_2",
		"option_generation_interval_ms": "OPTION_GENERATION_INTERVAL",
		"max_carried_parcels":           "MAX_CARRIED_PARCELS",
		"max_distance_for_random_move":  "MAX_DISTANCE_FOR_RANDOM_MOVE",
		"max_retry_common_delivery":     "MAX_RETRY_COMMON_DELIVERY",
		"log_level":                     "LOG_LEVEL",
		"pddl_enabled":                  "PDDL_ENABLED",
		"pddl_solver_path":              "PDDL_SOLVER_PATH",
		"pddl_problem_dir":              "PDDL_PROBLEM_DIR",
	}
	for key, env := range bindings {
		if err := vp.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if vp.GetString("host") == "" {
		return nil, fmt.Errorf("HOST is required")
	}
	if vp.GetString("token") == "" {
		return nil, fmt.Errorf("TOKEN is required")
	}
	if vp.GetBool("dual_agent") && vp.GetString("token2") == "" {
		return nil, fmt.Errorf("TOKEN_2 is required when DUAL_AGENT is set")
	}
	if vp.GetBool("pddl_enabled") && vp.GetString("pddl_solver_path") == "" {
		return nil, fmt.Errorf("PDDL_SOLVER_PATH is required when PDDL_ENABLED is set")
	}

	cfg := &Config{
		Host:                     vp.GetString("host"),
		Token:                    vp.GetString("token"),
		Token2:                   vp.GetString("token2"),
		DualAgent:                vp.GetBool("dual_agent"),
		DebugAddr:                vp.GetString("debug_addr"),
		DebugAddr2:               vp.GetString("debug_addr2"),
		OptionGenerationInterval: time.Duration(vp.GetInt("option_generation_interval_ms")) * time.Millisecond,
		MaxCarriedParcels:        vp.GetInt("max_carried_parcels"),
		MaxDistanceForRandomMove: vp.GetFloat64("max_distance_for_random_move"),
		MaxRetryCommonDelivery:   vp.GetInt("max_retry_common_delivery"),
		LogLevel:                 vp.GetString("log_level"),
		PDDLEnabled:              vp.GetBool("pddl_enabled"),
		PDDLSolverPath:           vp.GetString("pddl_solver_path"),
		PDDLProblemDir:           vp.GetString("pddl_problem_dir"),
	}
	return cfg, nil
}
