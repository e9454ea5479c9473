package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/filecache"
	"github.com/engramdev/engram/internal/memory"
	"github.com/engramdev/engram/internal/server"
	"github.com/engramdev/engram/internal/updater"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: "Starts the Engram MCP server speaking JSON-RPC over stdin/stdout.\n" +
			"This is the command an MCP client configuration should launch.",
		Run: runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	s, cleanup, err := server.New(cfg, sessionID, logger)
	if err != nil {
		exitErr("creating server", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	if cfg.AutoRecall {
		go startupScan()
	}

	// Close the shared store before dying on interrupt, otherwise the
	// WAL checkpoint is left to the next process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cleanup()
		os.Exit(0)
	}()

	if err := mcpserver.ServeStdio(s); err != nil {
		exitErr("serving", err)
	}
}

// startupScan captures key project files (README, manifests) from the
// directory the server was launched in, so first-session agents get
// project context without asking. The project is identified by its
// repository root path.
func startupScan() {
	store, err := memory.Shared(storeConfig())
	if err != nil {
		return // already logged by the server warm-up
	}
	root := filecache.ProjectRoot(".")
	n, err := filecache.New(store, logger).ScanOnStartup(root, root)
	if err != nil {
		logger.Warn("startup scan failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("startup scan stored project files", "files", n, "project", root)
	}
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort — network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(server.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  📦 Update available: v%s → v%s\n"+
				"     Run: engram update\n"+
				"     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}
