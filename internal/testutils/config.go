// Package testutils holds helpers shared by integration tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/nfrund/chathub/internal/config"
)

// TestSecret signs tokens when .env.test does not set TOKEN_SECRET.
const TestSecret = "chathub-test-secret"

// ConfigForTests applies the project's .env.test, if any, to the test
// environment and loads a validated config from it. Port is always "0".
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	if root, ok := projectRoot(); ok {
		if env, err := godotenv.Read(filepath.Join(root, ".env.test")); err == nil {
			for key, value := range env {
				t.Setenv(key, value)
			}
		}
	}
	if os.Getenv("TOKEN_SECRET") == "" {
		t.Setenv("TOKEN_SECRET", TestSecret)
	}
	t.Setenv("PORT", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	return cfg
}

func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
