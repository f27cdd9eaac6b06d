package cli

import (
	"github.com/spf13/cobra"

	"github.com/threadloom/threadloom/internal/config"
)

// Shared CLI flags
var (
	listenHost string
	listenPort int
	sqlitePath string
	quiet      bool
)

// ServerConfig holds the loaded server configuration (set by main)
var ServerConfig *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	ServerConfig = c

	rootCmd := &cobra.Command{
		Use:   "threadloom",
		Short: "threadloom - conversational memory graph service",
		Long: `threadloom streams LLM chat turns while weaving every exchange into a
per-project temporal memory graph: pinned summaries and long-term memory are
injected into each turn, and each turn becomes a linked graph node.

Just type 'threadloom' to start the server.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	rootCmd.PersistentFlags().StringVar(&listenHost, "host", "", "listen host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&listenPort, "port", 0, "listen port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "", "sqlite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress request logging")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(ProvidersCmd())

	return rootCmd
}

// applyFlagOverrides folds CLI flags into the loaded config.
func applyFlagOverrides(c *config.Config) {
	if listenHost != "" {
		c.Host = listenHost
	}
	if listenPort != 0 {
		c.Port = listenPort
	}
	if sqlitePath != "" {
		c.Database.SQLitePath = sqlitePath
	}
}
