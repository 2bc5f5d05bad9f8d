package cmd

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings read from the environment. Flags set on the command
// line win over these.
type Env struct {
	LogLevel  string `env:"LATTICE_SIM_LOG"`
	OutputDir string `env:"LATTICE_SIM_OUTPUT_DIR"`
}

// LoadEnv parses the LATTICE_SIM_* variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
