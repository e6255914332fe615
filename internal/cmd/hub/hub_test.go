package hub

import (
	"flag"
	"strings"
	"testing"

	"github.com/halcyonic/ensemble.space/internal/sigil"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("hub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.OracleURL != "http://localhost:8099/oracle" {
		t.Fatalf("expected default oracle url, got %q", cfg.OracleURL)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("ENSEMBLE_SPACE_HUB_HTTP_ADDR", "env-hub")
	t.Setenv("ENSEMBLE_SPACE_ORACLE_URL", "env-oracle")

	fs := flag.NewFlagSet("hub", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-hub",
		"-oracle-url", "flag-oracle",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-hub" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.OracleURL != "flag-oracle" {
		t.Fatalf("expected flag oracle url, got %q", cfg.OracleURL)
	}
}

func TestParseConfigSecretsFromEnv(t *testing.T) {
	t.Setenv("ENSEMBLE_SPACE_ORACLE_API_KEY", "api-key")
	t.Setenv("ENSEMBLE_SPACE_SESSION_SIGNING_SECRET", "signing")
	t.Setenv("ENSEMBLE_SPACE_DATASTORE_DSN", "file:hub.db")
	t.Setenv("ENSEMBLE_SPACE_MASTER_KEY", "master")
	t.Setenv("ENSEMBLE_SPACE_ENTROPY_KEY", "entropy")

	fs := flag.NewFlagSet("hub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsAllMissingSecrets(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, name := range []string{
		"ENSEMBLE_SPACE_ORACLE_API_KEY",
		"ENSEMBLE_SPACE_SESSION_SIGNING_SECRET",
		"ENSEMBLE_SPACE_DATASTORE_DSN",
		"ENSEMBLE_SPACE_MASTER_KEY",
		"ENSEMBLE_SPACE_ENTROPY_KEY",
	} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q missing secret %s", err, name)
		}
	}
}

func TestAssembleHubBootstrapsNexus(t *testing.T) {
	cfg := Config{
		OracleURL:            "http://localhost:8099/oracle",
		OracleAPIKey:         "api-key",
		SessionSigningSecret: "signing",
		MasterKey:            "master",
		EntropyKey:           "entropy",
	}

	hub, err := assembleHub(cfg, nil)
	if err != nil {
		t.Fatalf("assemble hub: %v", err)
	}
	if _, ok := hub.Ensembles().NexusID(); !ok {
		t.Fatal("nexus ensemble not bootstrapped")
	}
	if hub.Ensembles().Len() != 1 {
		t.Fatalf("ensembles = %d, want 1", hub.Ensembles().Len())
	}
}

func TestAssembleHubKeysIdentitiesWithEntropyKey(t *testing.T) {
	cfg := Config{
		OracleURL:            "http://localhost:8099/oracle",
		OracleAPIKey:         "api-key",
		SessionSigningSecret: "signing",
		MasterKey:            "master",
		EntropyKey:           "entropy",
	}

	hub, err := assembleHub(cfg, nil)
	if err != nil {
		t.Fatalf("assemble hub: %v", err)
	}
	session, err := hub.Sessions().OnConnect("conn-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	entropyGen, err := sigil.NewGenerator([]byte(cfg.EntropyKey))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if got := entropyGen.Derive("context:" + session.ClientID); session.Signature != got {
		t.Fatalf("signature = %q, want derivation under the entropy key %q", session.Signature, got)
	}

	signingGen, err := sigil.NewGenerator([]byte(cfg.SessionSigningSecret))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if session.Signature == signingGen.Derive("context:"+session.ClientID) {
		t.Fatal("signature derived under the token signing secret")
	}
}
