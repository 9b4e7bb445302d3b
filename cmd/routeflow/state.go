package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/routeingest/internal/app"
	"github.com/Lllllllleong/routeingest/internal/models"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted pipeline state",
}

var stateShowFull bool

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print queue progress, or the whole state with --full",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, closer, err := app.OpenStates(cmd.Context(), cfg, mode())
		if err != nil {
			return err
		}
		defer closer.Close()

		state, err := states.Load(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if stateShowFull {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		_, err = fmt.Fprint(out, stateSummary(state))
		return err
	},
}

func stateSummary(s *models.PipelineState) string {
	pending := s.PendingContinuation
	if pending == "" {
		pending = "-"
	}
	return fmt.Sprintf("queue:        %d\ncursor:       %d\nremaining:    %d\nprocessed:    %d\ngeocoded:     %d\ncontinuation: %s\nupdated:      %s\n",
		len(s.Queue), s.Cursor, len(s.Queue)-s.Cursor, len(s.Processed), len(s.GeocodeCache), pending,
		s.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
}

func init() {
	stateShowCmd.Flags().BoolVar(&stateShowFull, "full", false, "print the full state as JSON")
	stateCmd.AddCommand(stateShowCmd)
	rootCmd.AddCommand(stateCmd)
}
