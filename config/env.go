package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the
// system where glomail is deployed. This
// enables host adaptions without needing
// to maintain two different config files.
// Use the .env file to populate secrets
// within the system.
type Env struct {
	SMTPRelayAddr string
}

// Functions

// LoadEnv looks for an .env file in the directory
// of glomail and reads in all defined values.
func LoadEnv() (*Env, error) {

	// Load environment file.
	err := godotenv.Load(".env")
	if err != nil {
		return nil, fmt.Errorf("failed to read in .env file with: %v", err)
	}

	env := new(Env)

	// Fill variables from .env into struct.
	env.SMTPRelayAddr = os.Getenv("SMTP_RELAY_ADDR")

	return env, nil
}

// ApplyEnv overrides config values for which the
// supplied environment defines a replacement.
func (c *Config) ApplyEnv(env *Env) {

	if env.SMTPRelayAddr != "" {
		c.SMTP.RelayAddr = env.SMTPRelayAddr
	}
}
