// Command scrutiny compares device profile snapshots against a reference.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/crocs-muni/scrutiny-viz/internal/cli"
)

func main() {
	// Load .env file if it exists (silently ignore errors)
	_ = godotenv.Load()

	os.Exit(cli.GetExitCode(cli.Execute()))
}
