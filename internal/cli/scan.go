package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/filecache"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Capture key project files into memory",
		Long: "Scans a project directory for key files (README, manifests, configs)\n" +
			"and stores condensed copies so agents start sessions with context.\n" +
			"Defaults to the repository root containing the current directory.",
		Args: cobra.MaximumNArgs(1),
		Run:  runScan,
	}

	cmd.Flags().StringP("project", "p", "", "Project id to file memories under (default: repository root path)")

	RootCmd.AddCommand(cmd)
}

func runScan(cmd *cobra.Command, args []string) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	root := filecache.ProjectRoot(dir)

	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		project = root
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := filecache.New(s, logger).ScanOnStartup(root, project)
	if err != nil {
		exitErr("scan", err)
	}

	fmt.Printf("Stored %d project files from %s\n", n, root)
}
