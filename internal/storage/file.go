package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.audit.jsonl      (append-only JSON Lines)
//   - <prefix>.snapshots.jsonl  (journal of save records)
//
// Snapshots are replayed from the journal on open and mirrored in memory.
// Clear truncates the journal.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	auditFile   *os.File
	journalFile *os.File
	snaps       []toast.Snapshot
}

type journalRecord struct {
	Op   string         `json:"op"`
	Snap toast.Snapshot `json:"snap"`
	At   time.Time      `json:"at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(prefix+".snapshots.jsonl", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	snaps, skipped, err := replayJournal(jf)
	if err != nil {
		_ = af.Close()
		_ = jf.Close()
		return nil, err
	}
	if skipped > 0 {
		log.Warn("skipped unreadable snapshot records", logx.Int("count", skipped))
	}
	if _, err := jf.Seek(0, io.SeekEnd); err != nil {
		_ = af.Close()
		_ = jf.Close()
		return nil, err
	}

	return &fileStore{
		log:         log,
		auditFile:   af,
		journalFile: jf,
		snaps:       snaps,
	}, nil
}

func replayJournal(r io.Reader) ([]toast.Snapshot, int, error) {
	var (
		out     []toast.Snapshot
		skipped int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec journalRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Snap.Key == "" {
			skipped++
			continue
		}
		out = upsertSnapshot(out, rec.Snap)
	}
	return out, skipped, sc.Err()
}

func (s *fileStore) Save(_ context.Context, key string, snap toast.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	snap.Key = key
	if err := json.NewEncoder(s.journalFile).Encode(journalRecord{Op: "save", Snap: snap, At: time.Now()}); err != nil {
		return err
	}
	if err := s.journalFile.Sync(); err != nil {
		return err
	}
	s.snaps = upsertSnapshot(s.snaps, snap)
	return nil
}

func (s *fileStore) LoadAll(context.Context) ([]toast.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil, ErrClosed
	}
	return slices.Clone(s.snaps), nil
}

func (s *fileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journalFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.snaps = nil
	return nil
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	if s.journalFile != nil {
		errs = append(errs, s.journalFile.Close())
		s.journalFile = nil
	}
	return errors.Join(errs...)
}
