package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"luftscan/internal/platform/kafka"
	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/internal/scan/store"
	"luftscan/internal/scan/stream"
	dErrors "luftscan/pkg/domain-errors"
)

type scanOptions struct {
	scenario string
	output   string
	format   string
	db       string
	kafka    bool
	samples  int
	seed     uint64
}

func newScanCmd(a *app) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a parameter scan from a scenario file",
		Long: `Samples the scenario's prior, evaluates every sample and writes the rows
as they complete. An interrupt stops the scan between batches; the rows
computed so far are still written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScan(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.scenario, "file", "f", "", "scenario YAML file")
	f.StringVarP(&o.output, "output", "o", "-", "output file, - for stdout")
	f.StringVar(&o.format, "format", "csv", "output format: csv or jsonl")
	f.StringVar(&o.db, "db", "", "SQLite file to record the scan in")
	f.BoolVar(&o.kafka, "kafka", false, "publish rows to the configured Kafka topic")
	f.IntVar(&o.samples, "samples", 0, "override the scenario sample count")
	f.Uint64Var(&o.seed, "seed", 0, "override the scenario seed")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, o *scanOptions) error {
	req, err := scan.LoadScenario(o.scenario)
	if err != nil {
		return err
	}
	if o.samples > 0 {
		req.Samples = o.samples
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = o.seed
	}
	schema, err := results.NewSchema(req.Priors.Names(), req.ObservableNames())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openLocalStore(o.db)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []scan.Option{
		scan.WithLogger(a.logger),
		scan.WithWorkers(a.cfg.Scan.Workers),
		scan.WithBatchSize(a.cfg.Scan.BatchSize),
		scan.WithPersistBatch(a.cfg.Scan.PersistBatch),
	}
	if o.kafka {
		pub, client, err := a.openPublisher(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, scan.WithPublisher(pub))
	}
	svc, err := scan.New(st, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.output != "-" {
		file, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}
	sink, err := rowWriter(o.format, out, schema)
	if err != nil {
		return err
	}

	rec, err := svc.Stream(ctx, req, sink)
	if rec != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "scan %s %s: %d of %d samples, %d failed\n",
			rec.ID, rec.Status, rec.Completed, rec.Requested, rec.Failed)
		if rec.Status == scan.StatusTruncated {
			fmt.Fprintln(cmd.ErrOrStderr(), "scan interrupted, partial table written")
		}
	}
	return err
}

// rowWriter returns the export sink for format.
func rowWriter(format string, w io.Writer, schema results.Schema) (results.Sink, error) {
	switch format {
	case "csv":
		return results.NewCSVWriter(w, schema), nil
	case "jsonl":
		return results.NewJSONLWriter(w, schema), nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown format %q, want csv or jsonl", format)
	}
}

// openLocalStore opens the SQLite store at path. Without a path the scan
// only needs its record, so rows are streamed to the export and not kept.
func openLocalStore(path string) (scan.Store, func(), error) {
	if path == "" {
		return store.NewMemory(store.RecordsOnly()), func() {}, nil
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

// openPublisher connects to the configured brokers and makes sure the row
// topic exists.
func (a *app) openPublisher(ctx context.Context) (*stream.Publisher, *kgo.Client, error) {
	client, err := kafka.New(a.cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, errors.New("kafka.brokers is not configured")
	}
	if err := kafka.EnsureTopic(ctx, client, a.cfg.Kafka); err != nil {
		client.Close()
		return nil, nil, err
	}
	pub, err := stream.NewPublisher(client, a.cfg.Kafka.Topic)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return pub, client, nil
}
