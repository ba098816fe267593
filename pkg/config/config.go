// Package config is the Option-pattern configuration surface shared by
// cmd/server and cmd/fpctl: a handful of fields, functional options, and a
// constructor that assembles the concrete collaborators (decoder, store,
// pipeline, recognizer) from them.
package config

import (
	"fmt"

	"github.com/himanishpuri/audiofp/internal/audio"
	"github.com/himanishpuri/audiofp/internal/ingest"
	"github.com/himanishpuri/audiofp/internal/peaks"
	"github.com/himanishpuri/audiofp/internal/recognizer"
	"github.com/himanishpuri/audiofp/internal/store"
	"github.com/himanishpuri/audiofp/internal/store/badgerstore"
	"github.com/himanishpuri/audiofp/internal/store/sqlitestore"
	"github.com/himanishpuri/audiofp/pkg/fplog"
)

// Backend selects which store.Store implementation New wires up.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

type Config struct {
	Backend           Backend
	DBPath            string
	TempDir           string
	Concurrency       int
	AllowedOrigins    []string
	UseAdaptivePicker bool
}

type Option func(*Config)

func WithBackend(b Backend) Option {
	return func(c *Config) { c.Backend = b }
}

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

func WithConcurrency(n int) Option {
	return func(c *Config) { c.Concurrency = n }
}

func WithAllowedOrigins(origins []string) Option {
	return func(c *Config) { c.AllowedOrigins = origins }
}

// WithAdaptivePicker swaps in peaks.AdaptiveBanded instead of the default
// peaks.StrictLocalMax. Intended for `fpctl --picker=adaptive` diagnostics,
// never for production ingestion.
func WithAdaptivePicker(use bool) Option {
	return func(c *Config) { c.UseAdaptivePicker = use }
}

func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendSQLite,
		DBPath:         "audiofp.sqlite3",
		TempDir:        "/tmp",
		Concurrency:    ingest.DefaultConcurrency,
		AllowedOrigins: []string{"*"},
	}
}

// New assembles a ready-to-use Recognizer from the given options: the
// chosen Store backend, a WAVDecoder-backed ingest.Pipeline, and the
// Recognizer facade over both.
func New(opts ...Option) (*recognizer.Recognizer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var picker peaks.Picker = peaks.NewStrictLocalMax()
	if cfg.UseAdaptivePicker {
		picker = peaks.NewAdaptiveBanded()
	}

	pipeline := &ingest.Pipeline{
		Decoder: audio.NewConvertingDecoder(cfg.TempDir),
		Picker:  picker,
		Store:   s,
		Log:     fplog.Get(),
	}

	return recognizer.New(s, pipeline, cfg.Concurrency), nil
}

func openStore(cfg *Config) (store.Store, error) {
	switch cfg.Backend {
	case BackendBadger:
		return badgerstore.Open(cfg.DBPath)
	case BackendSQLite, "":
		return sqlitestore.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
