package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export all memories, tags and links as a versioned JSON document.\nFilter to a single project with --project.",
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringP("project", "p", "", "Export only this project's memories")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")
	project, _ := cmd.Flags().GetString("project")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	doc, err := s.Export()
	if err != nil {
		exitErr("export", err)
	}
	if project != "" {
		doc.FilterProject(project)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		exitErr("encode", err)
	}

	if output == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(output, append(b, '\n'), 0o644); err != nil {
		exitErr("write file", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d memories to %s\n", len(doc.Memories), output)
}
