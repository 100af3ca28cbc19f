package main

import (
	"os"

	"github.com/PratikDhanave/attendance-sync-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
