package main

import (
	"log"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Log to stderr; stdout is reserved for command output and, in serve
	// mode, the MCP protocol.
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
