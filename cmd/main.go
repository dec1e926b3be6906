package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/app"
	"github.com/withindevelopment-activate/within-the-app-sub000/config"
	"github.com/withindevelopment-activate/within-the-app-sub000/log"
)

var (
	rootCmd = &cobra.Command{
		Use:           "attribution",
		Short:         "Marketing attribution and reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the attribution service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	cfgFile string
	version = "dev"
)

// bootstrap loads the configuration, installs the logger and creates the app.
func bootstrap() (*config.Config, *app.App, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot load a config %v", err.Error())
	}
	slog.SetDefault(log.New(cfg.Logger, os.Stdout))
	return cfg, app.New(cfg), nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.AddCommand(
		versionCmd,
		serveCmd,
		reportCmd,
		catalogCmd,
		identityCmd,
		ordersCmd,
		tokenCmd,
		archiveCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("command failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
