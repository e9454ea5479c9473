// Package cli implements the engram CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/memory"
)

var (
	cfg       *config.Config
	sessionID string
	logger    *slog.Logger

	debugFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Persistent memory for AI coding assistants",
	Long: "Engram is a per-project knowledge store served over MCP. It keeps\n" +
		"decisions, patterns and past mistakes in a local SQLite database and\n" +
		"hands them back to coding agents with ranked full-text search.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		// All diagnostics go to stderr; stdout belongs to the MCP
		// transport and to command output.
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		sessionID = newSessionID()
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

// newSessionID mints the ULID recorded as session provenance on every
// memory this process writes.
func newSessionID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func storeConfig() memory.Config {
	return memory.Config{
		Path:        cfg.DBPath,
		MaxMemories: cfg.MaxMemories,
		SearchLimit: cfg.SearchLimit,
		Logger:      logger,
	}
}

// openStore opens a private store handle for one-shot commands. The
// serve command uses memory.Shared instead so the MCP tools and the
// startup scan share a single connection.
func openStore() (*memory.Store, error) {
	return memory.New(storeConfig())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
