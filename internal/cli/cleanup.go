package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run store maintenance",
		Long: "Optimizes the search index and enforces the memory cap. Optionally\n" +
			"purges old never-accessed memories and compacts the database file.",
		Run: runCleanup,
	}

	cmd.Flags().Int("purge-days", 0, "Delete never-accessed memories older than this many days (0 = skip)")
	cmd.Flags().Bool("vacuum", false, "Reclaim free database pages")

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	purgeDays, _ := cmd.Flags().GetInt("purge-days")
	vacuum, _ := cmd.Flags().GetBool("vacuum")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if purgeDays > 0 {
		purged, err := s.Purge(purgeDays)
		if err != nil {
			exitErr("purge", err)
		}
		fmt.Printf("Purged %d never-accessed memories older than %d days\n", purged, purgeDays)
	}

	if vacuum {
		if err := s.Vacuum(); err != nil {
			exitErr("vacuum", err)
		}
		fmt.Println("Vacuumed database")
	}

	report := s.RunMaintenance()
	if report.Evicted > 0 {
		fmt.Printf("Evicted %d memories over the cap\n", report.Evicted)
	}
	if report.OptimizeError != "" {
		fmt.Printf("Optimize error: %s\n", report.OptimizeError)
	}
	if report.EvictError != "" {
		fmt.Printf("Evict error: %s\n", report.EvictError)
	}
	fmt.Printf("Database size: %s\n", humanize.Bytes(uint64(report.DBSizeBytes)))
}
