package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/app"
	"github.com/Lllllllleong/routeingest/internal/config"
)

var (
	cfg   *config.Config
	cloud bool
)

var rootCmd = &cobra.Command{
	Use:   "routeflow",
	Short: "Bus route document ingestion",
	Long:  "Scans route sheet collections, extracts stops, geocodes them and publishes one route artifact per bus and period.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cloud, "cloud", false, "use GCS state, the Firestore lock and workflow continuations")
}

func mode() app.Mode {
	if cloud {
		return app.ModeCloud
	}
	return app.ModeLocal
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
