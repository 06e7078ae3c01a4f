package agent

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	catalogdb "github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog/sqlite"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the SQLite catalog",
}

var seedFile string

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import databases, templates and elements from a YAML file",
	Example: `  web-service-reader catalog seed --file assets.yaml
  web-service-reader catalog seed --file assets.yaml --collector.server_name ./data/catalog.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			return err
		}
		path := cfg.Collector.ServerName
		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		store, err := catalogdb.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := catalogdb.Seed(cmd.Context(), store, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmdOut(), "seeded %d elements into %s\n", n, path)
		return nil
	},
}

func init() {
	catalogSeedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "-> Seed file (YAML) | 导入文件")
	_ = catalogSeedCmd.MarkFlagRequired("file")
	catalogCmd.AddCommand(catalogSeedCmd)
}

// cmdOut is where user-facing command results go.
func cmdOut() io.Writer { return rootCmd.OutOrStdout() }
