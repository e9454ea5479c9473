package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and configuration",
		Run:   runVersion,
	}

	RootCmd.AddCommand(cmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("engram v%s\n", server.Version)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Database: %s\n", cfg.DBPath)
}
