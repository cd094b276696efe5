package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

const envTestFile = ".env.test"

// LoadTestEnv points DATABASE_URL at TEST_DATABASE_URL from .env.test so
// integration tests never touch the database a developer runs the scraper against.
// A DATABASE_URL already present in the environment (CI) is left alone.
func LoadTestEnv(t *testing.T) {
	t.Helper()

	if os.Getenv("DATABASE_URL") != "" {
		t.Log("DATABASE_URL already set in environment")
		return
	}

	envPath := FindUp(envTestFile, 5)
	if envPath == "" {
		t.Logf("%s not found, using environment variables as-is", envTestFile)
		return
	}

	envMap, err := godotenv.Read(envPath)
	if err != nil {
		t.Logf("Failed to read %s: %v", envPath, err)
		return
	}

	if testDBURL := envMap["TEST_DATABASE_URL"]; testDBURL != "" {
		t.Setenv("DATABASE_URL", testDBURL)
		t.Logf("DATABASE_URL set from TEST_DATABASE_URL in %s", envPath)
	}
}

// FindUp looks for name in the working directory and up to levels parents.
func FindUp(name string, levels int) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for range levels + 1 {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
