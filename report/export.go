package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/metrics"
)

// Destination picks where a report is written. It stands in for the
// desktop save dialog: ok=false means the user cancelled.
type Destination interface {
	Choose(ctx context.Context, suggested string) (path string, ok bool, err error)
}

// Path is a Destination fixed up front. The empty path is a cancelled dialog.
type Path string

func (p Path) Choose(_ context.Context, _ string) (string, bool, error) {
	return string(p), p != "", nil
}

// Dir writes the suggested file name into a directory.
type Dir string

func (d Dir) Choose(_ context.Context, suggested string) (string, bool, error) {
	if d == "" {
		return "", false, nil
	}
	return filepath.Join(string(d), suggested), true, nil
}

// Result is the outcome of an export. Cancelled is a normal outcome,
// distinct from an error.
type Result struct {
	Cancelled bool   `json:"cancelled"`
	FilePath  string `json:"filePath,omitempty"`
}

// Exporter renders reports to files.
type Exporter struct {
	reports *Service
	log     *logger.Logger
}

func NewExporter(reports *Service, log *logger.Logger) *Exporter {
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{reports: reports, log: log.WithComponent("report")}
}

// Export loads the report, asks dest for a path and writes the file.
// An unknown customer or a cancelled destination yields Cancelled. On a
// write failure no file is left at the destination path.
func (e *Exporter) Export(ctx context.Context, req Request, dest Destination) (Result, error) {
	kind, format := string(req.Kind), string(req.Format)
	log := e.log.WithContext(ctx).With("kind", kind, "format", format)

	data, err := e.reports.Load(ctx, req)
	if errors.Is(err, ledger.ErrCustomerNotFound) {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeCancelled).Inc()
		log.Infow("export cancelled: customer not found", "customer_id", req.CustomerID)
		return Result{Cancelled: true}, nil
	}
	if err != nil {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeError).Inc()
		return Result{}, err
	}

	doc, err := Encode(data, req.Format)
	if err != nil {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeError).Inc()
		return Result{}, err
	}

	path, ok, err := dest.Choose(ctx, doc.Filename)
	if err != nil {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeError).Inc()
		return Result{}, fmt.Errorf("choose destination: %w", err)
	}
	if !ok {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeCancelled).Inc()
		return Result{Cancelled: true}, nil
	}

	if err := writeFile(path, doc.Body); err != nil {
		metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeError).Inc()
		log.Errorw("export failed", "path", path, "error", err)
		return Result{}, err
	}

	metrics.ReportsExported.WithLabelValues(kind, format, metrics.OutcomeOK).Inc()
	log.Infow("report exported", "path", path, "bytes", len(doc.Body))
	return Result{FilePath: path}, nil
}

// writeFile writes to a temp file beside path and renames it into place.
func writeFile(path string, body []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
