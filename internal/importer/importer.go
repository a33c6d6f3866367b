// Package importer feeds transaction exports and pattern tables into the
// database.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"smartbuy/config"
	"smartbuy/internal/analysis"
	"smartbuy/internal/loader"
	"smartbuy/internal/models"
	"smartbuy/internal/processor"
	"smartbuy/internal/queue"
)

// PatternWriter replaces the stored pattern table.
type PatternWriter interface {
	ReplacePatterns(ctx context.Context, entries []models.PatternEntry) error
}

// Result summarizes one transaction import.
type Result struct {
	Read    int                `json:"read"`
	Skipped []*loader.RowError `json:"-"`
	Stats   processor.Stats    `json:"stats"`
}

type Importer struct {
	config *config.Config
	logger *logrus.Logger
}

func NewImporter(cfg *config.Config, logger *logrus.Logger) *Importer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Importer{config: cfg, logger: logger}
}

// ImportTransactions streams a CSV export into writer in batches. Malformed
// rows are skipped and reported in the result. onBatch, if set, is called
// with the size of every stored batch.
func (im *Importer) ImportTransactions(ctx context.Context, r io.Reader, writer processor.TransactionWriter, onBatch func(n int)) (*Result, error) {
	reader, err := loader.NewTransactionReader(r)
	if err != nil {
		return nil, err
	}

	q := queue.NewTransactionQueue(im.config.BatchProcessing.QueueBuffer, im.logger)
	proc := processor.NewBatchProcessor(writer, q, im.config, im.logger)
	if onBatch != nil {
		proc.OnBatch(onBatch)
	}
	proc.Start()
	q.Start()

	result := &Result{}
	readErr := im.feed(ctx, reader, q, result)
	if readErr != nil {
		proc.Stop()
	}
	if err := q.Close(); err != nil {
		im.logger.WithError(err).Warn("Failed to close import queue")
	}
	<-q.Done()
	proc.Stop()

	result.Stats = proc.Stats()
	fields := logrus.Fields{
		"read":     result.Read,
		"skipped":  len(result.Skipped),
		"written":  result.Stats.Transactions,
		"batches":  result.Stats.Batches,
		"failures": result.Stats.Failed,
	}
	if readErr != nil {
		im.logger.WithError(readErr).WithFields(fields).Error("Transaction import aborted")
		return result, readErr
	}
	if result.Stats.Failed > 0 {
		im.logger.WithFields(fields).Error("Transaction import finished with failed batches")
		return result, fmt.Errorf("%d batches failed to store", result.Stats.Failed)
	}
	im.logger.WithFields(fields).Info("Transaction import completed")
	return result, nil
}

func (im *Importer) feed(ctx context.Context, reader *loader.TransactionReader, q *queue.TransactionQueue, result *Result) error {
	size := im.config.BatchProcessing.MaxBatchSize
	batch := make([]*models.Transaction, 0, size)

	for {
		t, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *loader.RowError
		if errors.As(err, &rowErr) {
			im.logger.WithError(rowErr).WithField("line", rowErr.Line).Debug("Skipping malformed row")
			result.Skipped = append(result.Skipped, rowErr)
			continue
		}
		if err != nil {
			return err
		}

		result.Read++
		batch = append(batch, &t)
		if len(batch) >= size {
			if err := q.PushWait(ctx, batch); err != nil {
				return err
			}
			batch = make([]*models.Transaction, 0, size)
		}
	}

	if len(batch) > 0 {
		return q.PushWait(ctx, batch)
	}
	return nil
}

// ImportPatterns loads a CSV or YAML pattern table, validates it and replaces
// the stored table.
func (im *Importer) ImportPatterns(ctx context.Context, path string, writer PatternWriter) ([]models.PatternEntry, error) {
	entries, err := loader.LoadPatterns(path)
	if err != nil {
		return nil, err
	}

	table, err := analysis.NewPatternTable(entries)
	if err != nil {
		return nil, err
	}
	if dups := table.DuplicateKeys(); len(dups) > 0 {
		im.logger.WithField("keys", dups).Warn("Pattern table contains duplicate keys")
	}

	if err := writer.ReplacePatterns(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to store patterns: %w", err)
	}

	im.logger.WithFields(logrus.Fields{
		"path":     path,
		"patterns": len(entries),
	}).Info("Pattern table imported")
	return entries, nil
}
