// Package config loads daemon and client settings from the environment and flags.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	pkgcrypto "github.com/bekovrafik/DreamColor/internal/crypto"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Server configures the daemon. Flags override environment values.
type Server struct {
	Addr     string `env:"DREAMCOLOR_ADDR" envDefault:"127.0.0.1:7443"`
	HTTPAddr string `env:"DREAMCOLOR_HTTP_ADDR" envDefault:"127.0.0.1:7480"`
	DataDir  string `env:"DREAMCOLOR_DATA_DIR" envDefault:"./data"`
	Store    string `env:"DREAMCOLOR_STORE" envDefault:"sqlite"`
	DSN      string `env:"DREAMCOLOR_DSN"`

	// Secret seals the stored API key and signs device tokens.
	// When empty a random secret is kept in DataDir.
	Secret string `env:"DREAMCOLOR_SECRET"`
	APIKey string `env:"DREAMCOLOR_API_KEY"`

	GenAIBaseURL string        `env:"DREAMCOLOR_GENAI_URL"`
	TextModel    string        `env:"DREAMCOLOR_TEXT_MODEL"`
	ImageModel   string        `env:"DREAMCOLOR_IMAGE_MODEL"`
	SpeechModel  string        `env:"DREAMCOLOR_SPEECH_MODEL"`
	Voice        string        `env:"DREAMCOLOR_VOICE"`
	HTTPTimeout  time.Duration `env:"DREAMCOLOR_HTTP_TIMEOUT" envDefault:"0s"`

	SceneAttempts int           `env:"DREAMCOLOR_SCENE_ATTEMPTS" envDefault:"2"`
	TokenTTL      time.Duration `env:"DREAMCOLOR_TOKEN_TTL" envDefault:"0s"`
	RatePerMinute int           `env:"DREAMCOLOR_RATE_PER_MINUTE" envDefault:"6"`
	RateBurst     int           `env:"DREAMCOLOR_RATE_BURST" envDefault:"3"`

	// PrintToken issues a device token for the named device and exits.
	PrintToken string

	TLSCert string `env:"DREAMCOLOR_TLS_CERT"`
	TLSKey  string `env:"DREAMCOLOR_TLS_KEY"`
	Dev     bool   `env:"DREAMCOLOR_DEV"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads the environment and then applies command-line flags from args.
func LoadServer(name string, args []string) (Server, error) {
	var c Server
	if err := ParseEnv(&c); err != nil {
		return Server{}, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", c.Addr, "gRPC listen address")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP listen address for downloads, health and metrics")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory for the local database and exports")
	fs.StringVar(&c.Store, "store", c.Store, "state backend: sqlite or postgres")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN when -store=postgres")
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "provider API key used when none is stored")
	fs.StringVar(&c.GenAIBaseURL, "genai-url", c.GenAIBaseURL, "generation API base URL")
	fs.DurationVar(&c.HTTPTimeout, "http-timeout", c.HTTPTimeout, "timeout for generation requests (0 = none)")
	fs.IntVar(&c.SceneAttempts, "scene-attempts", c.SceneAttempts, "image requests per scene before it is skipped")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "device token lifetime (0 = no expiry)")
	fs.IntVar(&c.RatePerMinute, "rate", c.RatePerMinute, "costly calls per minute (0 = unlimited)")
	fs.StringVar(&c.PrintToken, "print-token", "", "print an API token for the named device and exit")
	fs.StringVar(&c.TLSCert, "tls-cert", c.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&c.TLSKey, "tls-key", c.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging and server reflection")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	return c, c.Validate()
}

// Validate checks cross-field constraints.
func (c Server) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DataDir == "" {
			return errors.New("config: data dir is required")
		}
	case StorePostgres:
		if c.DSN == "" {
			return errors.New("config: -dsn is required with -store=postgres")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("config: -tls-cert and -tls-key must be set together")
	}
	if c.SceneAttempts < 1 {
		return errors.New("config: scene attempts must be at least 1")
	}
	return nil
}

// SQLitePath is the embedded database file.
func (c Server) SQLitePath() string { return filepath.Join(c.DataDir, "dreamcolor.db") }

// ExportDir holds written documents.
func (c Server) ExportDir() string { return filepath.Join(c.DataDir, "exports") }

// LoadSecret returns the configured secret, or reads (creating on first use)
// a random one kept in the data directory.
func (c Server) LoadSecret() ([]byte, error) {
	if c.Secret != "" {
		return []byte(c.Secret), nil
	}
	path := filepath.Join(c.DataDir, "secret.key")
	raw, err := os.ReadFile(path)
	if err == nil {
		b, derr := hex.DecodeString(strings.TrimSpace(string(raw)))
		if derr != nil || len(b) < pkgcrypto.KeyLen {
			return nil, fmt.Errorf("config: %s is not a valid secret", path)
		}
		return b, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read secret: %w", err)
	}
	b, err := pkgcrypto.RandBytes(pkgcrypto.KeyLen)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("config: create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(b)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("config: write secret: %w", err)
	}
	return b, nil
}

// Client configures the command-line client.
type Client struct {
	Addr     string `env:"DREAMCOLOR_ADDR" envDefault:"127.0.0.1:7443"`
	HTTPAddr string `env:"DREAMCOLOR_HTTP_ADDR" envDefault:"127.0.0.1:7480"`
	Token    string `env:"DREAMCOLOR_TOKEN"`
	CAFile   string `env:"DREAMCOLOR_CA_FILE"`
	Timeout  time.Duration `env:"DREAMCOLOR_TIMEOUT" envDefault:"30s"`
	// Passphrase seals the saved token when set.
	Passphrase string `env:"DREAMCOLOR_TOKEN_PASSPHRASE"`
}

// LoadClient reads the client environment.
func LoadClient() (Client, error) {
	var c Client
	if err := ParseEnv(&c); err != nil {
		return Client{}, err
	}
	return c, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
