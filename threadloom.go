package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/threadloom/threadloom/cmd/threadloom"
	"github.com/threadloom/threadloom/internal/config"
)

//go:embed etc/threadloom.yaml
var embeddedConfig []byte

func main() {
	// .env is optional; environment variables referenced by the embedded
	// config must be set before expansion.
	_ = godotenv.Load()

	c, err := config.LoadFromBytes(embeddedConfig)
	if err != nil {
		fmt.Printf("Failed to load embedded config: %v\n", err)
		os.Exit(1)
	}

	if err := cli.SetupRootCmd(&c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
