package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tejusbharadwaj/meterclient/internal/api"
	"github.com/tejusbharadwaj/meterclient/internal/database"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

type seriesOptions struct {
	seriesType string
	meterID    string
	from       string
	to         string
	paginate   bool
	chunkDays  int
}

func (o *seriesOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.seriesType, "type", "t", string(models.QuarterHour), "series type (QUARTER_HOUR, DAY, METER_READ)")
	cmd.Flags().StringVarP(&o.meterID, "meter", "m", "", "metering point id (all meters when empty)")
	cmd.Flags().StringVar(&o.from, "from", "", "start date YYYY-MM-DD (default three years before --to)")
	cmd.Flags().StringVar(&o.to, "to", "", "end date YYYY-MM-DD (default today)")
}

func newMetersCmd(opts *rootOptions) *cobra.Command {
	var resultType string

	cmd := &cobra.Command{
		Use:   "meters [meterID]",
		Short: "Print metering point details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			meterID := ""
			if len(args) > 0 {
				meterID = args[0]
			}

			raw, err := a.client.MeterInfo(cmd.Context(), meterID, resultType)
			if err != nil {
				return err
			}

			var doc interface{}
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("failed to decode meter info: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, doc)
		},
	}
	cmd.Flags().StringVar(&resultType, "result-type", api.DefaultResultType, "listing filter when no meter id is given")
	return cmd
}

func newSeriesCmd(opts *rootOptions) *cobra.Command {
	so := &seriesOptions{}

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print a measurement series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var queryOpts []api.QueryOption
			switch {
			case cmd.Flags().Changed("chunk-days"):
				queryOpts = append(queryOpts, api.WithChunkDays(so.chunkDays))
			case so.paginate:
				queryOpts = append(queryOpts, api.WithPagination())
			}

			res, err := a.client.Measurements(cmd.Context(), seriesType(so.seriesType), so.meterID, so.from, so.to, queryOpts...)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, res)
		},
	}
	so.bind(cmd)
	cmd.Flags().BoolVarP(&so.paginate, "paginate", "p", false, "fetch the range in chunks")
	cmd.Flags().IntVar(&so.chunkDays, "chunk-days", 0, "chunk length in days (implies --paginate)")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	so := &seriesOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Store a measurement series in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := openRepository(cmd.Context(), a)
			if err != nil {
				return err
			}

			fetcher := api.NewSeriesFetcher(a.client, repo, api.SyncConfig{ChunkDays: a.cfg.Pagination.ChunkDays}, a.clock, a.logger)
			stored, err := fetcher.Sync(cmd.Context(), so.meterID, seriesType(so.seriesType), so.from, so.to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d new samples\n", stored)
			return nil
		},
	}
	so.bind(cmd)
	return cmd
}

func seriesType(s string) models.SeriesType {
	return models.SeriesType(strings.ToUpper(s))
}

func openRepository(ctx context.Context, a *app) (*database.PostgresRepo, error) {
	repo, err := database.NewPostgresRepo(a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, repo)

	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
