package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tkingovr/toolbridge/api"
)

// DefaultMaxMemory is the number of most recent records kept in memory for
// queries and stats.
const DefaultMaxMemory = 10000

const (
	lockFile     = ".ledger.lock"
	lockTimeout  = 5 * time.Second
	lockInterval = 10 * time.Millisecond
)

// JSONLStore is an append-only JSONL file ledger with date-based rotation.
// Records already on disk are loaded when the store is opened. Appends hold
// an OS file lock so several processes can share one ledger directory.
type JSONLStore struct {
	mu          sync.Mutex
	dir         string
	lock        *flock.Flock
	currentDate string
	file        *os.File
	writer      *bufio.Writer

	// In-memory buffer for queries and stats (bounded)
	records []*api.AuditRecord
	maxMem  int

	// Subscribers for real-time streaming
	subMu   sync.RWMutex
	subs    map[int]chan *api.AuditRecord
	nextSub int
}

// NewJSONLStore creates a new JSONL ledger writing to the given directory.
func NewJSONLStore(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	s := &JSONLStore{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFile)),
		maxMem: DefaultMaxMemory,
		subs:   make(map[int]chan *api.AuditRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLStore) Write(ctx context.Context, record *api.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	// Rotate file if date changed
	dateStr := record.Timestamp.Format("2006-01-02")
	if dateStr != s.currentDate {
		if err := s.rotate(dateStr); err != nil {
			return err
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling ledger record: %w", err)
	}
	if err := s.appendLine(ctx, data); err != nil {
		return err
	}

	s.remember(record)
	s.notifySubscribers(record)

	return nil
}

func (s *JSONLStore) Query(_ context.Context, filter api.QueryFilter) ([]*api.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*api.AuditRecord
	for _, r := range s.records {
		if matchesFilter(r, filter) {
			results = append(results, r)
		}
	}

	// Apply offset and limit
	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return nil, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}

	return results, nil
}

func (s *JSONLStore) Stats(_ context.Context) (*api.AuditStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &api.AuditStats{
		ByTool:  make(map[string]int),
		ByModel: make(map[string]int),
	}
	total := decimal.Zero

	for _, r := range s.records {
		switch r.Kind {
		case api.KindToolCall:
			stats.ToolCalls++
			if r.IsError {
				stats.ToolErrors++
			}
			if r.Verdict == api.VerdictDeny {
				stats.DenyCount++
			}
			if r.Tool != "" {
				stats.ByTool[r.Tool]++
			}
		case api.KindCompletion:
			stats.Completions++
			if r.Model != "" {
				stats.ByModel[r.Model]++
			}
			if r.InputTokens != nil {
				stats.InputTokens += *r.InputTokens
			}
			if r.OutputTokens != nil {
				stats.OutputTokens += *r.OutputTokens
			}
			cost, err := decimal.NewFromString(r.Cost)
			if err != nil {
				stats.UnpricedCompletions++
				continue
			}
			total = total.Add(cost)
		}
	}

	stats.TotalCost = total.String()
	return stats, nil
}

func (s *JSONLStore) Subscribe(_ context.Context) (<-chan *api.AuditRecord, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan *api.AuditRecord, 100)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
	}
	return s.lock.Close()
}

// appendLine writes one line under the directory lock.
func (s *JSONLStore) appendLine(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, lockInterval)
	if err != nil {
		return fmt.Errorf("locking ledger: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking ledger: timed out after %s", lockTimeout)
	}
	defer s.lock.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *JSONLStore) rotate(dateStr string) error {
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
	}

	path := filepath.Join(s.dir, dateStr+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening ledger file: %w", err)
	}

	s.file = f
	s.writer = bufio.NewWriter(f)
	s.currentDate = dateStr
	return nil
}

// load reads existing ledger files in date order. Lines that do not decode
// are skipped.
func (s *JSONLStore) load() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening ledger file: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			var r api.AuditRecord
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			s.remember(&r)
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return fmt.Errorf("reading ledger file %s: %w", path, err)
		}
	}
	return nil
}

func (s *JSONLStore) remember(record *api.AuditRecord) {
	if len(s.records) >= s.maxMem {
		s.records = s.records[1:]
	}
	s.records = append(s.records, record)
}

func (s *JSONLStore) notifySubscribers(record *api.AuditRecord) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- record:
		default:
			// Drop if subscriber is slow
		}
	}
}

func matchesFilter(r *api.AuditRecord, f api.QueryFilter) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Tool != "" && r.Tool != f.Tool {
		return false
	}
	if f.Model != "" && r.Model != f.Model {
		return false
	}
	if f.Verdict != "" && r.Verdict != f.Verdict {
		return false
	}
	return true
}
