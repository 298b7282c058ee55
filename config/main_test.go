package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain gates the config package tests behind GO_ENV=test so a
// stray DATABASE_URL can never point them at a real database
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr,
			"SAFETY CHECK FAILED: config tests must run with GO_ENV=test (current: %q).\n"+
				"Run them as: GO_ENV=test go test ./...\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
