package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/webtaxon/internal/application"
	appclassify "github.com/bryanwahyu/webtaxon/internal/application/classify"
	"github.com/bryanwahyu/webtaxon/internal/bootstrap"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/web"
	"github.com/bryanwahyu/webtaxon/internal/ioformats"
)

type classifyRecord struct {
	URL            string                        `json:"url"`
	ID             string                        `json:"id,omitempty"`
	Classification *classification.Classification `json:"classification,omitempty"`
	Blocked        string                        `json:"blocked,omitempty"`
	Error          string                        `json:"error,omitempty"`
}

func newClassifyCmd(c *cli) *cobra.Command {
	var (
		input       string
		out         string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "classify [url...]",
		Short: "Classify URLs and record them into history",
		Long: `Classifies each URL given as an argument or listed in --input
(csv with a 'url' column, or ndjson). One NDJSON record per URL is written
to --output or stdout, in input order.

Example:
  webtaxon classify https://go.dev/blog --db history.db
  webtaxon classify --input urls.csv --output out.ndjson --oracle openai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if input != "" {
				more, err := ioformats.ReadURLs(input)
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				urls = append(urls, more...)
			}
			if len(urls) == 0 {
				return errors.New("no urls: pass them as arguments or with --input")
			}
			if concurrency <= 0 {
				concurrency = c.cfg.Batch.Concurrency
			}

			ctx := cmd.Context()
			history, closeHistory, err := c.openHistory(ctx)
			if err != nil {
				return err
			}
			defer closeHistory()

			oracle, err := bootstrap.NewOracle(ctx, c.cfg)
			if err != nil {
				return err
			}

			svc := &appclassify.Service{
				Fetcher: web.NewFetcher(web.FetcherOptions{
					Timeout:      c.cfg.Fetch.Timeout,
					MaxBodyBytes: c.cfg.Fetch.MaxBodyBytes,
					UserAgent:    c.cfg.Fetch.UserAgent,
				}),
				Extractor:        web.NewExtractor(),
				Oracle:           oracle,
				History:          history,
				Clock:            application.SystemClock{},
				Logger:           c.logger,
				MaxChars:         c.cfg.Fetch.MaxChars,
				OracleTimeout:    c.cfg.AI.Timeout,
				BatchConcurrency: concurrency,
			}

			outcomes := svc.ClassifyBatch(ctx, urls)
			records := make([]classifyRecord, len(outcomes))
			failed := 0
			for i, o := range outcomes {
				records[i] = toRecord(o)
				if o.Err != nil {
					failed++
				}
			}

			w, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			if err := ioformats.WriteNDJSON(w, records); err != nil {
				closeOut()
				return err
			}
			c.logger.Info("classify finished", zap.Int("urls", len(urls)), zap.Int("failed", failed))
			return closeOut()
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file (csv with 'url' column or ndjson)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output NDJSON file (default stdout)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel classifications (default from config)")
	return cmd
}

func toRecord(o appclassify.Outcome) classifyRecord {
	rec := classifyRecord{URL: o.URL}
	var blocked *classification.BlockedError
	switch {
	case o.Err == nil:
		rec.ID = o.Result.ID
		c := o.Result.Classification
		rec.Classification = &c
	case errors.As(o.Err, &blocked):
		rec.Blocked = blocked.Reason
		rec.Error = o.Err.Error()
	default:
		rec.Error = o.Err.Error()
	}
	return rec
}
