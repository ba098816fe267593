//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/himanishpuri/audiofp/pkg/config"
)

var (
	port           int
	dbPath         string
	tempDir        string
	backend        string
	concurrency    int
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUDIOFP_DB_PATH", "audiofp.sqlite3"), "Path to the fingerprint store (file or directory, depending on -backend)")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AUDIOFP_TEMP_DIR", "/tmp"), "Temporary directory for uploads and format conversion")
	flag.StringVar(&backend, "backend", getEnvOrDefault("AUDIOFP_BACKEND", "sqlite"), "Store backend: sqlite or badger")
	flag.IntVar(&concurrency, "concurrency", 2, "Bounded ingest worker pool size")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	var be config.Backend
	switch backend {
	case "badger":
		be = config.BackendBadger
	default:
		be = config.BackendSQLite
	}

	r, err := config.New(
		config.WithBackend(be),
		config.WithDBPath(dbPath),
		config.WithTempDir(tempDir),
		config.WithConcurrency(concurrency),
		config.WithAllowedOrigins(origins),
	)
	if err != nil {
		log.Fatalf("failed to create recognizer: %v", err)
	}
	defer r.Close()

	serverConfig := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		TempDir:        tempDir,
		AllowedOrigins: origins,
	}

	server := NewServer(r, serverConfig)
	if err := server.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
