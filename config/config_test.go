package config_test

import (
	"os"
	"testing"

	"path/filepath"

	"github.com/glomail/glomail/config"
)

// Functions

// TestLoadConfig executes a black-box unit test on the
// implemented LoadConfig() function.
func TestLoadConfig(t *testing.T) {

	content := `[Server]
Name = "glomail"
ListenMailAddr = "127.0.0.1:2525"
LocalDomain = "example.org"

[Storage]
DataRoot = "/var/lib/glomail/data"
LostMailRoot = "/var/lib/glomail/lost"

[SMTP]
RelayAddr = "relay.example.org:25"
TimeoutSec = 5
`

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Expected writing test config not to fail but: %v", err)
	}

	conf, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected loading of configuration file not to fail but: %v", err)
	}

	if conf.Server.ListenMailAddr != "127.0.0.1:2525" {
		t.Fatalf("Expected configured listen address but got: '%s'", conf.Server.ListenMailAddr)
	}

	if conf.Storage.DataRoot != "/var/lib/glomail/data" {
		t.Fatalf("Expected absolute data root to stay untouched but got: '%s'", conf.Storage.DataRoot)
	}

	if conf.SMTP.TimeoutSec != 5 {
		t.Fatalf("Expected configured SMTP timeout but got: %d", conf.SMTP.TimeoutSec)
	}

	// LocalName falls back to the local domain.
	if conf.SMTP.LocalName != "example.org" {
		t.Fatalf("Expected SMTP local name to default to local domain but got: '%s'", conf.SMTP.LocalName)
	}
}

// TestLoadConfigDefaults checks the values an almost
// empty config file falls back to.
func TestLoadConfigDefaults(t *testing.T) {

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(""), 0600); err != nil {
		t.Fatalf("Expected writing test config not to fail but: %v", err)
	}

	conf, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected loading of empty configuration not to fail but: %v", err)
	}

	if conf.Server.ListenMailAddr != "127.0.0.1:1337" {
		t.Fatalf("Expected default listen address but got: '%s'", conf.Server.ListenMailAddr)
	}

	if conf.Server.LocalDomain != "glo2000.ca" {
		t.Fatalf("Expected default local domain but got: '%s'", conf.Server.LocalDomain)
	}

	if !filepath.IsAbs(conf.Storage.DataRoot) {
		t.Fatalf("Expected relative data root to become absolute but got: '%s'", conf.Storage.DataRoot)
	}

	if !filepath.IsAbs(conf.Storage.LostMailRoot) {
		t.Fatalf("Expected relative lost mail root to become absolute but got: '%s'", conf.Storage.LostMailRoot)
	}

	if conf.SMTP.TimeoutSec != 10 {
		t.Fatalf("Expected default SMTP timeout but got: %d", conf.SMTP.TimeoutSec)
	}
}

// TestApplyEnv checks that environment values override
// the file-based configuration.
func TestApplyEnv(t *testing.T) {

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(""), 0600); err != nil {
		t.Fatalf("Expected writing test config not to fail but: %v", err)
	}

	conf, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected loading of configuration not to fail but: %v", err)
	}

	conf.ApplyEnv(&config.Env{SMTPRelayAddr: "relay.override:25"})

	if conf.SMTP.RelayAddr != "relay.override:25" {
		t.Fatalf("Expected env override to win but got: '%s'", conf.SMTP.RelayAddr)
	}

	// An empty environment changes nothing.
	conf.ApplyEnv(&config.Env{})

	if conf.SMTP.RelayAddr != "relay.override:25" {
		t.Fatalf("Expected empty env to change nothing but got: '%s'", conf.SMTP.RelayAddr)
	}
}
