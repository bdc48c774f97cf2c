package main

import (
	"context"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tishsrisasi/divorce-dashboard/internal/api"
	"github.com/tishsrisasi/divorce-dashboard/internal/config"
	"github.com/tishsrisasi/divorce-dashboard/internal/engine"
)

var (
	cfgFile       string
	listenAddr    string
	datasetSource string
)

var rootCmd = &cobra.Command{
	Use:   "divorce-dashboard",
	Short: "Filter-and-aggregate analytics server for the divorce dataset",
	Long: `Loads a CSV dataset once into an immutable in-memory column store and
serves filter-and-aggregate queries over it. Every query recomputes its
filtered view and aggregates from scratch; there is no per-request state.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.Flags().StringVar(&datasetSource, "dataset", "", "dataset file path or URL (overrides config)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if datasetSource != "" {
		cfg.Dataset.Source = datasetSource
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := api.NewHandler(cfg.Dataset.TargetColumn)
	h.RegisterRoutes(e)

	// The API goes live immediately and answers 503 until the dataset
	// lands; the load runs behind it.
	go func() {
		timeout := time.Duration(cfg.Dataset.LoadTimeoutSec) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		ds, err := engine.Load(ctx, cfg.Dataset.Source, engine.LoadOptions{
			BoolColumns:        cfg.Dataset.BoolColumns,
			CategoricalColumns: cfg.Dataset.CategoricalColumns,
		})
		if err != nil {
			log.WithError(err).Error("dataset load failed, API stays in loading state")
			return
		}
		h.SetDataset(ds)
	}()

	log.WithField("addr", cfg.ListenAddr).Info("server ready, dataset loading in background")
	return e.Start(cfg.ListenAddr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
