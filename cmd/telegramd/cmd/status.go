package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scalytics/telegramd/internal/config"
	"github.com/scalytics/telegramd/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run the store integrity check and print basic counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(color.CyanString(logo))

		cfg, err := config.Load("")
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		dbPath := filepath.Join(cfg.Paths.ProjectDir, "store", "telegramd.db")
		s, err := store.Open(dbPath, nil)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer s.Close()

		counts, err := collectCounts(s)
		if err != nil {
			return fmt.Errorf("collecting counts: %w", err)
		}

		fmt.Printf("store path:        %s\n", dbPath)
		fmt.Printf("allowed chats:     %d\n", len(cfg.Transport.AllowedChatIDs()))
		fmt.Printf("memory entries:    %d\n", counts.memories)
		fmt.Printf("scheduled tasks:   %d (%d active)\n", counts.tasks, counts.activeTasks)
		fmt.Printf("contacts:          %d\n", counts.contacts)
		return nil
	},
}

type storeCounts struct {
	memories    int
	tasks       int
	activeTasks int
	contacts    int
}

func collectCounts(s *store.Store) (storeCounts, error) {
	var c storeCounts
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM memory_entries`).Scan(&c.memories); err != nil {
		return c, err
	}
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM scheduled_tasks`).Scan(&c.tasks); err != nil {
		return c, err
	}
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM scheduled_tasks WHERE status = 'active'`).Scan(&c.activeTasks); err != nil {
		return c, err
	}
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&c.contacts); err != nil {
		return c, err
	}
	return c, nil
}
