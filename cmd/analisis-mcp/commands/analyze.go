package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var analyzeMode string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-id>",
	Short: "Run the health analysis for one project and print the closed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || projectID <= 0 {
			return fmt.Errorf("invalid project id %q", args[0])
		}

		app, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		mode := analyzeMode
		if mode == "" {
			mode = cfg.NarrativeMode
		}
		run, runErr := app.pipeline.AnalyzeProject(cmd.Context(), projectID, mode)
		if run != nil {
			if err := printJSON(cmd, run); err != nil {
				return err
			}
		}
		return runErr
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "", "narrative mode: ejecutivo or completo (default from NARRATIVE_MODE)")
}
