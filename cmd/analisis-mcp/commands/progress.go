package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress <run-id>",
	Short: "Print the stage progress of a run from the shared Redis progress store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Redis.Address == "" {
			return errors.New("progress of another process needs REDIS_ADDRESS; in-memory progress is only visible inside the MCP server")
		}

		app, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.tracker.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}
