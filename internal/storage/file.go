package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "tickbot/pkg/logx"
)

// recentCap bounds the in-memory tail the file store serves RecentOutcomes from.
const recentCap = 256

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.outcomes.jsonl (append-only JSON Lines)
//
// The tail of the journal is replayed on open so RecentOutcomes spans runs.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder

	// recent is a ring of the last recentCap outcomes; next is the write slot.
	recent []Outcome
	next   int
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
	journal := prefix + ".outcomes.jsonl"

	s := &fileStore{log: log, recent: make([]Outcome, 0, recentCap)}
	if err := s.replay(journal); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("outcome journal replay failed", logx.String("path", journal), logx.Err(err))
	}

	f, err := os.OpenFile(journal, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.file = f
	s.enc = json.NewEncoder(f)
	return s, nil
}

func (s *fileStore) replay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	bad := 0
	for sc.Scan() {
		var o Outcome
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			bad++
			continue
		}
		s.remember(o)
	}
	if bad > 0 {
		s.log.Debug("skipped unreadable outcome lines", logx.Int("count", bad), logx.String("path", path))
	}
	return sc.Err()
}

func (s *fileStore) remember(o Outcome) {
	if len(s.recent) < recentCap {
		s.recent = append(s.recent, o)
		s.next = len(s.recent) % recentCap
		return
	}
	s.recent[s.next] = o
	s.next = (s.next + 1) % recentCap
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.enc = nil
	return err
}

func (s *fileStore) AppendOutcome(ctx context.Context, o Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("outcome journal closed")
	}
	if err := s.enc.Encode(o); err != nil {
		return err
	}
	s.remember(o)
	return nil
}

func (s *fileStore) RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Outcome, 0, limit)
	// Newest is just before next (or at the end while the ring is filling).
	newest := n - 1
	if n == recentCap {
		newest = (s.next - 1 + recentCap) % recentCap
	}
	for i := 0; i < limit; i++ {
		out = append(out, s.recent[(newest-i+n)%n])
	}
	return out, nil
}
