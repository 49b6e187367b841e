/*
backup.go - Store Backup

PURPOSE:
  Copies the SQLite file byte for byte into the backup directory and
  describes the copy. Optionally pushes the copy to an S3-compatible
  bucket.

CREATE:
  1. mkdir -p <dir>
  2. free space on <dir> >= size of store + min_free_bytes
  3. WAL checkpoint so the main file is complete
  4. copy to a temp file in <dir>, fsync, rename to
       slnfs_crm_backup_<UTC ISO timestamp, ':' and '.' as '-'>.db
  5. count rows per table (left empty, with count_error, if counting fails)
  6. upload when an Uploader is configured. An upload failure is
     reported on Info; the local copy still stands.

SEE ALSO:
  - s3.go: Offsite uploader
  - store/sqlite/sqlite.go: Checkpoint, CountRows
*/
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/metrics"
)

const (
	// DefaultDir is used when no directory is configured.
	DefaultDir = "backups"

	filePrefix = "slnfs_crm_backup_"
	fileExt    = ".db"
)

var (
	ErrInsufficientSpace = errors.New("insufficient disk space for backup")
	ErrNotFileBacked     = errors.New("store is not file backed")
)

// Source is the store being backed up.
type Source interface {
	Path() string
	Checkpoint(ctx context.Context) error
	CountRows(ctx context.Context) (map[string]int64, error)
}

// Uploader pushes a finished backup offsite and returns the object key.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.ReadSeeker) (string, error)
}

// Info describes one backup.
type Info struct {
	Timestamp    time.Time        `json:"timestamp"`
	Tables       []string         `json:"tables"`
	RecordCounts map[string]int64 `json:"record_counts"`
	TotalSize    string           `json:"total_size"`
	SizeBytes    int64            `json:"size_bytes"`
	FilePath     string           `json:"file_path"`
	RemoteKey    string           `json:"remote_key,omitempty"`
	UploadError  string           `json:"upload_error,omitempty"`
	CountError   string           `json:"count_error,omitempty"`
}

// Service creates backups of one Source.
type Service struct {
	src      Source
	tables   []string
	dir      string
	minFree  uint64
	uploader Uploader
	free     func(path string) (uint64, error)
	now      func() time.Time
	log      *logger.Logger
}

type Option func(*Service)

func WithDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dir = dir
		}
	}
}

func WithMinFreeBytes(n uint64) Option {
	return func(s *Service) { s.minFree = n }
}

func WithUploader(u Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l.WithComponent("backup") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFreeSpace replaces the disk free-space check.
func WithFreeSpace(free func(path string) (uint64, error)) Option {
	return func(s *Service) { s.free = free }
}

// NewService backs up src. tables names the tables reported in Info.
func NewService(src Source, tables []string, opts ...Option) *Service {
	s := &Service{
		src:    src,
		tables: tables,
		dir:    DefaultDir,
		free:   diskFree,
		now:    time.Now,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Create writes a new backup and returns its description.
func (s *Service) Create(ctx context.Context) (*Info, error) {
	info, err := s.create(ctx)
	if err != nil {
		metrics.BackupsCreated.WithLabelValues(metrics.OutcomeError).Inc()
		s.log.WithContext(ctx).Errorw("backup failed", "error", err)
		return nil, err
	}
	metrics.BackupsCreated.WithLabelValues(metrics.OutcomeOK).Inc()
	s.log.WithContext(ctx).Infow("backup created",
		"path", info.FilePath, "size_bytes", info.SizeBytes, "remote_key", info.RemoteKey)
	return info, nil
}

func (s *Service) create(ctx context.Context) (*Info, error) {
	srcPath := s.src.Path()
	if srcPath == "" || srcPath == ":memory:" || strings.HasPrefix(srcPath, "file::memory:") {
		return nil, ErrNotFileBacked
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	st, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat store: %w", err)
	}
	free, err := s.free(s.dir)
	if err != nil {
		return nil, fmt.Errorf("check free space: %w", err)
	}
	if need := uint64(st.Size()) + s.minFree; free < need {
		return nil, fmt.Errorf("%w: %d bytes free, %d needed", ErrInsufficientSpace, free, need)
	}

	if err := s.src.Checkpoint(ctx); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	now := s.now().UTC()
	dest := filepath.Join(s.dir, FileName(now))
	size, err := copyFile(srcPath, dest)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Timestamp:    now,
		Tables:       append([]string(nil), s.tables...),
		RecordCounts: make(map[string]int64, len(s.tables)),
		TotalSize:    FormatSize(size),
		SizeBytes:    size,
		FilePath:     dest,
	}

	// Counts that cannot be read are left out rather than reported as zero.
	counts, err := s.src.CountRows(ctx)
	if err != nil {
		s.log.WithContext(ctx).Warnw("count rows failed", "path", dest, "error", err)
		info.CountError = err.Error()
	} else {
		for _, t := range s.tables {
			info.RecordCounts[t] = counts[t]
		}
	}

	if s.uploader != nil {
		if err := s.upload(ctx, info); err != nil {
			s.log.WithContext(ctx).Errorw("backup upload failed", "path", dest, "error", err)
			info.UploadError = err.Error()
		}
	}
	return info, nil
}

func (s *Service) upload(ctx context.Context, info *Info) error {
	f, err := os.Open(info.FilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	key, err := s.uploader.Upload(ctx, filepath.Base(info.FilePath), f)
	if err != nil {
		return err
	}
	info.RemoteKey = key
	return nil
}

// FileName is the backup file name for t.
func FileName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return filePrefix + ts + fileExt
}

// FormatSize renders bytes as kilobytes with two decimals.
func FormatSize(n int64) string {
	return fmt.Sprintf("%.2f KB", float64(n)/1024)
}

// copyFile copies src to dst through a temp file in dst's directory.
// dst only appears once the copy is complete.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	return n, nil
}
