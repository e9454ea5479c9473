package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats()
	if err != nil {
		exitErr("stats", err)
	}
	schema, err := s.SchemaVersion()
	if err != nil {
		exitErr("schema version", err)
	}

	doc := struct {
		*memory.Stats
		SchemaVersion int `json:"schema_version"`
	}{stats, schema}

	b, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(b))
}
