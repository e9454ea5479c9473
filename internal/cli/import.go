package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import memories from a JSON export",
		Long:  "Import a document produced by export. Pass \"-\" to read from stdin.\nMemories already present (same id or duplicate content) are skipped.",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitErr("read input", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	report, err := s.ImportJSON(data)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf("Imported %d memories (%d skipped), restored %d links\n",
		report.Imported, report.Skipped, report.Links)
}
