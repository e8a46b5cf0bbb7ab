// Package sqlite provides an embedded durable store: the in-memory
// transactional semantics, snapshotted to a single SQLite table as JSON
// buckets after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"scrumcore/internal/infra/persistence/memory"
	"scrumcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "scrumcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// RunInTransaction applies fn within a transaction, then snapshots to SQLite
// when the commit succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	seen := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := decodeBucket(&snapshot, bucket, payload); err != nil {
			return err
		}
		seen = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if seen {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for bucket, payload := range encodeBuckets(snapshot) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state (bucket, payload) VALUES (?, ?)
			 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
			bucket, payload); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func encodeBuckets(snapshot memory.Snapshot) map[string][]byte {
	out := make(map[string][]byte, 8)
	put := func(bucket string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			// All snapshot types marshal cleanly; a failure here is a bug.
			panic(fmt.Sprintf("encode %s: %v", bucket, err))
		}
		out[bucket] = payload
	}
	put("projects", snapshot.Projects)
	put("sprints", snapshot.Sprints)
	put("backlog_items", snapshot.Items)
	put("tasks", snapshot.Tasks)
	put("acceptance_criteria", snapshot.Criteria)
	put("people", snapshot.People)
	put("team_members", snapshot.Members)
	put("sprint_elements", snapshot.Elements)
	return out
}

func decodeBucket(snapshot *memory.Snapshot, bucket string, payload []byte) error {
	var err error
	switch bucket {
	case "projects":
		err = json.Unmarshal(payload, &snapshot.Projects)
	case "sprints":
		err = json.Unmarshal(payload, &snapshot.Sprints)
	case "backlog_items":
		err = json.Unmarshal(payload, &snapshot.Items)
	case "tasks":
		err = json.Unmarshal(payload, &snapshot.Tasks)
	case "acceptance_criteria":
		err = json.Unmarshal(payload, &snapshot.Criteria)
	case "people":
		err = json.Unmarshal(payload, &snapshot.People)
	case "team_members":
		err = json.Unmarshal(payload, &snapshot.Members)
	case "sprint_elements":
		err = json.Unmarshal(payload, &snapshot.Elements)
	default:
		// Unknown buckets from newer versions are ignored.
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
