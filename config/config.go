package config

import (
	"fmt"

	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Server  Server
	Storage Storage
	SMTP    SMTP
}

// Server describes the public entry point of a
// glomail setup, the framed-message endpoint all
// mail clients connect to.
type Server struct {
	Name           string
	Greeting       string
	ListenMailAddr string
	PrometheusAddr string
	LocalDomain    string
}

// Storage configures the on-disk layout holding
// account credentials and per-user mailboxes.
type Storage struct {
	DataRoot     string
	LostMailRoot string
}

// SMTP configures the external relay used for
// mail addressed outside the local domain.
type SMTP struct {
	RelayAddr  string
	LocalName  string
	TimeoutSec int
}

// Functions

// LoadConfig takes in the path to the main config
// file of glomail in TOML syntax and places the values
// from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	// Fill in defaults for values the file left out.
	if conf.Server.ListenMailAddr == "" {
		conf.Server.ListenMailAddr = "127.0.0.1:1337"
	}

	if conf.Server.LocalDomain == "" {
		conf.Server.LocalDomain = "glo2000.ca"
	}

	if conf.Storage.DataRoot == "" {
		conf.Storage.DataRoot = "data"
	}

	if conf.Storage.LostMailRoot == "" {
		conf.Storage.LostMailRoot = filepath.Join(conf.Storage.DataRoot, "lost+found")
	}

	if conf.SMTP.LocalName == "" {
		conf.SMTP.LocalName = conf.Server.LocalDomain
	}

	if conf.SMTP.TimeoutSec <= 0 {
		conf.SMTP.TimeoutSec = 10
	}

	// Prefix each relative storage path in config
	// with the absolute path it resolves to from
	// the current working directory.

	// Storage.DataRoot
	if filepath.IsAbs(conf.Storage.DataRoot) != true {

		conf.Storage.DataRoot, err = filepath.Abs(conf.Storage.DataRoot)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of data root: %v", err)
		}
	}

	// Storage.LostMailRoot
	if filepath.IsAbs(conf.Storage.LostMailRoot) != true {

		conf.Storage.LostMailRoot, err = filepath.Abs(conf.Storage.LostMailRoot)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of lost mail root: %v", err)
		}
	}

	return conf, nil
}
