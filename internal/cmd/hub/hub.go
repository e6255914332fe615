// Package hub parses hub command flags and composes the broadcast hub
// entrypoint: secrets, datastore, oracle pipeline and realtime transport.
package hub

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/halcyonic/ensemble.space/internal/envelope"
	server "github.com/halcyonic/ensemble.space/internal/hub/app"
	"github.com/halcyonic/ensemble.space/internal/hub/storage/sqlite"
	"github.com/halcyonic/ensemble.space/internal/oracle"
	entrypoint "github.com/halcyonic/ensemble.space/internal/platform/cmd"
	"github.com/halcyonic/ensemble.space/internal/sigil"
	"github.com/halcyonic/ensemble.space/internal/telemetry"
	"github.com/halcyonic/ensemble.space/internal/token"
)

// Config holds hub command configuration. The five secrets have no
// defaults and no flags; the process refuses to start without them.
type Config struct {
	HTTPAddr  string `env:"ENSEMBLE_SPACE_HUB_HTTP_ADDR" envDefault:":8090"`
	OracleURL string `env:"ENSEMBLE_SPACE_ORACLE_URL"    envDefault:"http://localhost:8099/oracle"`

	OracleAPIKey         string `env:"ENSEMBLE_SPACE_ORACLE_API_KEY"`
	SessionSigningSecret string `env:"ENSEMBLE_SPACE_SESSION_SIGNING_SECRET"`
	DatastoreDSN         string `env:"ENSEMBLE_SPACE_DATASTORE_DSN"`
	MasterKey            string `env:"ENSEMBLE_SPACE_MASTER_KEY"`
	EntropyKey           string `env:"ENSEMBLE_SPACE_ENTROPY_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "hub HTTP listen address")
	fs.StringVar(&cfg.OracleURL, "oracle-url", cfg.OracleURL, "oracle endpoint URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required secret is present.
func (c Config) Validate() error {
	missing := make([]string, 0, 5)
	for _, secret := range []struct {
		name  string
		value string
	}{
		{"ENSEMBLE_SPACE_ORACLE_API_KEY", c.OracleAPIKey},
		{"ENSEMBLE_SPACE_SESSION_SIGNING_SECRET", c.SessionSigningSecret},
		{"ENSEMBLE_SPACE_DATASTORE_DSN", c.DatastoreDSN},
		{"ENSEMBLE_SPACE_MASTER_KEY", c.MasterKey},
		{"ENSEMBLE_SPACE_ENTROPY_KEY", c.EntropyKey},
	} {
		if strings.TrimSpace(secret.value) == "" {
			missing = append(missing, secret.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run assembles the hub and serves until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHub, func(context.Context) error {
		store, err := sqlite.Open(cfg.DatastoreDSN)
		if err != nil {
			return fmt.Errorf("open datastore: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close datastore: %v", err)
			}
		}()

		hub, err := assembleHub(cfg, store)
		if err != nil {
			return err
		}

		if err := server.Run(ctx, server.Config{HTTPAddr: cfg.HTTPAddr}, hub); err != nil {
			return fmt.Errorf("serve hub: %w", err)
		}
		return nil
	})
}

func assembleHub(cfg Config, store *sqlite.Store) (*server.Hub, error) {
	codec, err := envelope.NewCodec([]byte(cfg.MasterKey))
	if err != nil {
		return nil, fmt.Errorf("build envelope codec: %w", err)
	}
	oracleClient, err := oracle.NewClient(oracle.Config{
		Endpoint:   cfg.OracleURL,
		APIKey:     cfg.OracleAPIKey,
		EntropyKey: cfg.EntropyKey,
	}, codec)
	if err != nil {
		return nil, fmt.Errorf("build oracle client: %w", err)
	}

	sigils, err := sigil.NewGenerator([]byte(cfg.EntropyKey))
	if err != nil {
		return nil, fmt.Errorf("build sigil generator: %w", err)
	}
	issuer, err := token.NewIssuer([]byte(cfg.SessionSigningSecret))
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}

	sessions, err := server.NewSessionRegistry(sigils, issuer)
	if err != nil {
		return nil, fmt.Errorf("build session registry: %w", err)
	}
	ensembles, err := server.NewEnsembleRegistry(sigils)
	if err != nil {
		return nil, fmt.Errorf("build ensemble registry: %w", err)
	}

	hub, err := server.NewHub(sessions, ensembles, oracleClient, telemetry.NewEmitter(store))
	if err != nil {
		return nil, fmt.Errorf("build hub: %w", err)
	}
	ensembles.Bootstrap()
	return hub, nil
}
