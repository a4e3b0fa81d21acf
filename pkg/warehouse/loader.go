// Package warehouse loads ingested rows into BigQuery with explicit
// write-disposition semantics.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
)

// Disposition governs what a load does to the destination table's existing
// contents.
type Disposition int

const (
	// ReplaceAll atomically discards existing contents and replaces them
	// with this call's rows. Used for snapshot entities where only the
	// current truth matters.
	ReplaceAll Disposition = iota
	// Append adds rows to existing contents. Used for accumulating
	// history across runs.
	Append
)

func (d Disposition) String() string {
	switch d {
	case ReplaceAll:
		return "REPLACE_ALL"
	case Append:
		return "APPEND"
	default:
		return fmt.Sprintf("Disposition(%d)", int(d))
	}
}

// LoadError wraps a storage failure for one destination table. The caller
// decides whether sibling loads continue; a LoadError anywhere in a run
// always suppresses the downstream trigger.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load into %s failed: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader writes rows into durable columnar storage. A nil schema means
// column types are inferred from the row shapes; that is only safe for
// small uniform entity loads.
type Loader interface {
	Load(ctx context.Context, rows []interface{}, table string, disposition Disposition, schema bigquery.Schema) error
}

// BigQueryLoader loads rows via BigQuery load jobs. REPLACE_ALL atomicity is
// delegated entirely to the load job's WRITE_TRUNCATE semantics.
type BigQueryLoader struct {
	client  *bigquery.Client
	dataset string
	logger  *slog.Logger
}

func NewBigQueryLoader(ctx context.Context, projectID, dataset string, logger *slog.Logger) (*BigQueryLoader, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery init: %w", err)
	}
	return &BigQueryLoader{client: client, dataset: dataset, logger: logger}, nil
}

// Close releases the underlying client.
func (l *BigQueryLoader) Close() error {
	return l.client.Close()
}

// Load runs one load job. Empty input is a logged no-op, not an error.
func (l *BigQueryLoader) Load(ctx context.Context, rows []interface{}, table string, disposition Disposition, schema bigquery.Schema) error {
	if len(rows) == 0 {
		l.logger.Info("No rows to load, skipping", "table", table)
		return nil
	}

	buf, err := encodeRows(rows)
	if err != nil {
		return &LoadError{Table: table, Err: err}
	}

	source := bigquery.NewReaderSource(buf)
	source.SourceFormat = bigquery.JSON
	if schema != nil {
		source.Schema = schema
	} else {
		source.AutoDetect = true
	}

	loader := l.client.Dataset(l.dataset).Table(table).LoaderFrom(source)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = writeDisposition(disposition)

	l.logger.Info("Loading rows", "table", table, "rows", len(rows), "disposition", disposition.String())

	job, err := loader.Run(ctx)
	if err != nil {
		return &LoadError{Table: table, Err: fmt.Errorf("start load job: %w", err)}
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return &LoadError{Table: table, Err: fmt.Errorf("wait for load job: %w", err)}
	}
	if err := status.Err(); err != nil {
		return &LoadError{Table: table, Err: fmt.Errorf("load job failed: %w", err)}
	}

	l.logger.Info("Load complete", "table", table, "rows", len(rows))
	return nil
}

func writeDisposition(d Disposition) bigquery.TableWriteDisposition {
	if d == ReplaceAll {
		return bigquery.WriteTruncate
	}
	return bigquery.WriteAppend
}

// encodeRows marshals rows as newline-delimited JSON, the wire format load
// jobs consume.
func encodeRows(rows []interface{}) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row: %w", err)
		}
	}
	return buf, nil
}

// DryRunLoader logs what would be loaded without touching BigQuery.
// Used by the CLI's --dry-run mode.
type DryRunLoader struct {
	Logger *slog.Logger
}

func (l *DryRunLoader) Load(ctx context.Context, rows []interface{}, table string, disposition Disposition, schema bigquery.Schema) error {
	l.Logger.Info("Dry run: skipping load", "table", table, "rows", len(rows), "disposition", disposition.String(), "explicit_schema", schema != nil)
	return nil
}
