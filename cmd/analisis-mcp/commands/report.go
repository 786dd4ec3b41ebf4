package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"analisis-mcp/internal/report"
)

var (
	reportOut      string
	reportOpen     bool
	reportAudience string
)

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Render the HTML informe of a run, or rewrite it for an audience",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		app, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		var page string
		if reportAudience != "" {
			audience, err := report.ParseAudience(reportAudience)
			if err != nil {
				return err
			}
			rewritten, err := app.reports.Rewrite(cmd.Context(), runID, audience)
			if err != nil {
				return err
			}
			page = rewritten.HTML
		} else if page, err = app.reports.InformeHTML(cmd.Context(), runID); err != nil {
			return err
		}

		out := reportOut
		if out == "" && reportOpen {
			out = filepath.Join(os.TempDir(), fmt.Sprintf("informe-%s.html", runID))
		}
		if out == "" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), page)
			return err
		}

		if err := os.WriteFile(out, []byte(page), 0644); err != nil {
			return fmt.Errorf("write informe: %w", err)
		}
		log.Info().Str("path", out).Msg("Informe written")

		if reportOpen {
			if err := browser.OpenFile(out); err != nil {
				return fmt.Errorf("open informe: %w", err)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "write the HTML to this file instead of stdout")
	reportCmd.Flags().BoolVar(&reportOpen, "open", false, "open the written file in the default browser")
	reportCmd.Flags().StringVar(&reportAudience, "audience", "", "rewrite for 'ejecutivo' or 'tecnico' (requires ANTHROPIC_API_KEY)")
}
