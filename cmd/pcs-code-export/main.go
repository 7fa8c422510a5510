package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/adapters/driving/cli"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	err := cli.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
