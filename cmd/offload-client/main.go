package main

import (
	"log/slog"
	"os"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}
