package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"ForexPulse/internal/usecase"
	"ForexPulse/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduled jobs and the bar consumer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()
		return app.Run(cmd.Context())
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one prices, news and macro ingestion cycle",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		prices, perr := app.Ingestion.IngestPrices(ctx)
		news, nerr := app.Ingestion.IngestNews(ctx)
		macro, merr := app.Ingestion.IngestMacro(ctx)
		if err := printJSON(map[string]any{"prices": prices, "news": news, "macro": macro}); err != nil {
			return err
		}
		return errors.Join(perr, nerr, merr)
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild derived timeframes from stored 1m bars",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		var errs []error
		for _, inst := range targetInstruments(app) {
			res, err := app.Aggregator.Run(cmd.Context(), inst)
			if err != nil {
				app.Logger.Error("aggregate failed", logger.String("instrument", inst), logger.Error(err))
				errs = append(errs, err)
				continue
			}
			app.Logger.Info("aggregated",
				logger.String("instrument", inst),
				logger.Any("inserted", res.Inserted),
				logger.Any("skipped", res.Skipped))
		}
		return errors.Join(errs...)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and save a direction model per instrument",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		var (
			results []*usecase.TrainResult
			errs    []error
		)
		for _, inst := range targetInstruments(app) {
			res, err := app.Trainer.Train(cmd.Context(), inst)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			results = append(results, res)
		}
		if err := printJSON(results); err != nil {
			return err
		}
		return errors.Join(errs...)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate, store and print the current signal per instrument",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		var (
			results []*usecase.PredictResult
			errs    []error
		)
		for _, inst := range targetInstruments(app) {
			res, err := app.Predictor.Predict(cmd.Context(), inst)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			results = append(results, res)
		}
		if err := printJSON(results); err != nil {
			return err
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, aggregateCmd, trainCmd, predictCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
