package commands

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"analisis-mcp/internal/cases"
)

var seedCatalog bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL tables and optionally seed the case catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.UseMySQL() {
			return errors.New("migrate needs MYSQL_DSN or MYSQL_HOST")
		}

		app, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.mysql.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info().Msg("Schema up to date")

		if !seedCatalog {
			return nil
		}
		cat, err := cases.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		if err := app.mysql.SeedCatalog(cmd.Context(), cat.All()); err != nil {
			return err
		}
		log.Info().Int("entries", cat.Len()).Msg("Case catalog seeded")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seedCatalog, "seed-catalog", false, "upsert the YAML case catalog into casos_catalogo")
}
