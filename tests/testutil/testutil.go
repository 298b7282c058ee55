package testutil

import (
	"os"
	"testing"
)

// RequireTestEnvironment fails the test unless GO_ENV=test, so a suite
// that issues destructive SQL can never run against a real database by
// accident. Call it before wiping tables.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: tests must run with GO_ENV=test to prevent data loss (current GO_ENV=%q)", env)
	}
}

// MustSetTestEnvironment forces GO_ENV=test for the duration of a
// suite. Use it in SetupSuite before anything reads configuration.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
}
