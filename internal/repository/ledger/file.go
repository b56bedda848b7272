// Package ledger persists the interaction ledger: a single JSON file guarded by one mutex, or a
// Redis hash for deployments with more than one process.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
)

const driverFile = "file"

// WriteFunc durably replaces the file at path with the contents of r.
type WriteFunc func(path string, r io.Reader) error

// FileOption configures a FileLedger.
type FileOption func(*FileLedger)

// WithWriter replaces the atomic temp-file-then-rename writer.
func WithWriter(w WriteFunc) FileOption {
	return func(l *FileLedger) { l.write = w }
}

type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (s fileStamp) equal(o fileStamp) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

// FileLedger keeps the whole ledger in one JSON file. Every mutation reloads the file, applies
// the change and atomically replaces the file while holding a single process-wide mutex.
// Reads are served from the last observed file contents without taking that mutex.
type FileLedger struct {
	path   string
	write  WriteFunc
	logger *zap.Logger

	mu sync.Mutex // serializes reload-mutate-persist

	snapMu    sync.RWMutex
	snap      interaction.Ledger
	snapStamp fileStamp
	snapOK    bool
}

// NewFileLedger creates a ledger stored at path.
func NewFileLedger(path string, logger *zap.Logger, opts ...FileOption) *FileLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &FileLedger{path: path, write: atomic.WriteFile, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string { return l.path }

// Increment adds one like to id and persists the ledger.
func (l *FileLedger) Increment(_ context.Context, id string) (interaction.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	led, err := l.reload()
	if err != nil {
		observe(driverFile, interaction.OpLike, "error")
		return interaction.Outcome{}, err
	}

	rec := led[id]
	last := rec.Likes
	rec.Likes++
	led[id] = rec

	if err := l.persist(led); err != nil {
		observe(driverFile, interaction.OpLike, "persist_failed")
		return interaction.Outcome{ItemID: id, Likes: last}, domain.NewPersistError(id, last, err)
	}
	observe(driverFile, interaction.OpLike, "committed")
	return interaction.Outcome{ItemID: id, Likes: rec.Likes, Changed: true}, nil
}

// Decrement removes one like from id. At zero it is a no-op and nothing is written.
func (l *FileLedger) Decrement(_ context.Context, id string) (interaction.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	led, err := l.reload()
	if err != nil {
		observe(driverFile, interaction.OpUnlike, "error")
		return interaction.Outcome{}, err
	}

	rec, ok := led[id]
	if !ok || rec.Likes <= 0 {
		observe(driverFile, interaction.OpUnlike, "noop")
		return interaction.Outcome{ItemID: id, Likes: 0}, nil
	}

	last := rec.Likes
	rec.Likes--
	led[id] = rec

	if err := l.persist(led); err != nil {
		observe(driverFile, interaction.OpUnlike, "persist_failed")
		return interaction.Outcome{ItemID: id, Likes: last}, domain.NewPersistError(id, last, err)
	}
	observe(driverFile, interaction.OpUnlike, "committed")
	return interaction.Outcome{ItemID: id, Likes: rec.Likes, Changed: true}, nil
}

// AddComment appends c to id's comments and persists the ledger.
func (l *FileLedger) AddComment(_ context.Context, id string, c interaction.Comment) (interaction.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	led, err := l.reload()
	if err != nil {
		observe(driverFile, interaction.OpComment, "error")
		return interaction.Record{}, err
	}

	prev := led[id]
	rec := prev
	rec.Comments = append(append([]interaction.Comment(nil), prev.Comments...), c)
	led[id] = rec

	if err := l.persist(led); err != nil {
		observe(driverFile, interaction.OpComment, "persist_failed")
		return prev, domain.NewPersistError(id, prev.Likes, err)
	}
	observe(driverFile, interaction.OpComment, "committed")
	return rec, nil
}

// Get returns the record of id. Unknown ids yield a zero record.
func (l *FileLedger) Get(_ context.Context, id string) (interaction.Record, error) {
	led, err := l.current()
	if err != nil {
		return interaction.Record{}, err
	}
	rec := led[id]
	if rec.Comments != nil {
		rec.Comments = append([]interaction.Comment(nil), rec.Comments...)
	}
	return rec, nil
}

// Summaries returns likes and comment counts for every item in the ledger.
func (l *FileLedger) Summaries(_ context.Context) (map[string]interaction.Summary, error) {
	led, err := l.current()
	if err != nil {
		return nil, err
	}
	return led.Summaries(), nil
}

// Snapshot returns a copy of the whole ledger as last persisted.
func (l *FileLedger) Snapshot(_ context.Context) (interaction.Ledger, error) {
	led, err := l.current()
	if err != nil {
		return nil, err
	}
	return led.Clone(), nil
}

// Ping checks that the ledger file, if present, is readable and valid.
func (l *FileLedger) Ping(_ context.Context) error {
	_, err := l.current()
	return err
}

// current returns the shared snapshot, re-reading the file when its stamp moved.
// Callers must not modify the result.
func (l *FileLedger) current() (interaction.Ledger, error) {
	st, err := l.stat()
	if err != nil {
		return nil, err
	}

	l.snapMu.RLock()
	if l.snapOK && l.snapStamp.equal(st) {
		led := l.snap
		l.snapMu.RUnlock()
		return led, nil
	}
	l.snapMu.RUnlock()

	led, st, err := l.readFile()
	if err != nil {
		return nil, err
	}
	l.publish(led, st)
	return led, nil
}

// reload reads the durable state for a mutation. Never served from the snapshot.
func (l *FileLedger) reload() (interaction.Ledger, error) {
	led, st, err := l.readFile()
	if err != nil {
		return nil, err
	}
	l.publish(led.Clone(), st)
	return led, nil
}

func (l *FileLedger) readFile() (interaction.Ledger, fileStamp, error) {
	st, err := l.stat()
	if err != nil {
		return nil, fileStamp{}, err
	}
	if !st.exists {
		return interaction.Ledger{}, st, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return interaction.Ledger{}, fileStamp{}, nil
		}
		return nil, fileStamp{}, fmt.Errorf("read ledger: %w", err)
	}
	led, err := decode(data)
	if err != nil {
		l.logger.Error("Ledger file is corrupt", zap.String("path", l.path), zap.Error(err))
		return nil, fileStamp{}, fmt.Errorf("%w: %s: %w", domain.ErrLedgerCorrupt, l.path, err)
	}
	return led, st, nil
}

func (l *FileLedger) stat() (fileStamp, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileStamp{}, nil
		}
		return fileStamp{}, fmt.Errorf("stat ledger: %w", err)
	}
	return fileStamp{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}

func (l *FileLedger) persist(led interaction.Ledger) error {
	start := time.Now()
	defer func() {
		metrics.LedgerPersistDuration.WithLabelValues(driverFile).Observe(time.Since(start).Seconds())
	}()

	data, err := encode(led)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := l.write(l.path, bytes.NewReader(data)); err != nil {
		l.logger.Error("Ledger persist failed", zap.String("path", l.path), zap.Error(err))
		return fmt.Errorf("write ledger: %w", err)
	}

	st, err := l.stat()
	if err != nil {
		// Written but not observable; drop the snapshot so the next read goes to disk.
		l.snapMu.Lock()
		l.snapOK = false
		l.snapMu.Unlock()
		return nil
	}
	l.publish(led.Clone(), st)
	return nil
}

func (l *FileLedger) publish(led interaction.Ledger, st fileStamp) {
	l.snapMu.Lock()
	l.snap = led
	l.snapStamp = st
	l.snapOK = true
	l.snapMu.Unlock()
}

func decode(data []byte) (interaction.Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return interaction.Ledger{}, nil
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	var led interaction.Ledger
	if err := json.Unmarshal(data, &led); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if led == nil {
		led = interaction.Ledger{}
	}
	return led, nil
}

func encode(led interaction.Ledger) ([]byte, error) {
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(data, '\n'), nil
}

func observe(driver string, op interaction.Op, outcome string) {
	metrics.LedgerMutationsTotal.WithLabelValues(driver, string(op), outcome).Inc()
}
