package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mocknest/mocknest/internal/id"
	"github.com/mocknest/mocknest/pkg/endpoint"
	"github.com/mocknest/mocknest/pkg/requestlog"
	"github.com/mocknest/mocknest/pkg/tier"
)

const configKey = "tenant"

// TenantStore persists a single tenant's endpoints, rules, configuration,
// and request log in one SQLite file.
type TenantStore struct {
	db *sql.DB
}

var _ requestlog.Store = (*TenantStore)(nil)

// Open opens (or creates) the tenant database at the given path and runs
// the schema migration.
func Open(path string) (*TenantStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening tenant db: %w", err)
	}
	// A tenant store is only ever used by its owning actor goroutine's
	// serialized operations, but the log pruner may touch it concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &TenantStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS config (
			key  TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS endpoints (
			id     TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			path   TEXT NOT NULL,
			data   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rules (
			id          TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL,
			priority    INTEGER NOT NULL,
			data        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rules_endpoint ON rules(endpoint_id);
		CREATE TABLE IF NOT EXISTS request_logs (
			id          TEXT PRIMARY KEY,
			endpoint_id TEXT,
			timestamp   INTEGER NOT NULL,
			data        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_logs_endpoint ON request_logs(endpoint_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON request_logs(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating tenant tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *TenantStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadConfig returns the stored tier configuration. The second return is
// false when the tenant has never been configured.
func (s *TenantStore) LoadConfig() (tier.Config, bool, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM config WHERE key = ?", configKey).Scan(&data)
	if err == sql.ErrNoRows {
		return tier.Config{}, false, nil
	}
	if err != nil {
		return tier.Config{}, false, fmt.Errorf("loading config: %w", err)
	}
	var cfg tier.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return tier.Config{}, false, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, true, nil
}

// SaveConfig persists the resolved tier configuration.
func (s *TenantStore) SaveConfig(cfg tier.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO config (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data`,
		configKey, string(data))
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// LoadSet reads the full endpoint set. An empty database yields an empty,
// non-nil set.
func (s *TenantStore) LoadSet() (*endpoint.Set, error) {
	set := &endpoint.Set{}

	rows, err := s.db.Query("SELECT data FROM endpoints ORDER BY method, path")
	if err != nil {
		return nil, fmt.Errorf("listing endpoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		var ep endpoint.Endpoint
		if err := json.Unmarshal([]byte(data), &ep); err != nil {
			return nil, fmt.Errorf("decoding endpoint: %w", err)
		}
		set.Endpoints = append(set.Endpoints, &ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := s.db.Query("SELECT data FROM rules ORDER BY endpoint_id, priority")
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var data string
		if err := ruleRows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		var r endpoint.Rule
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decoding rule: %w", err)
		}
		set.Rules = append(set.Rules, &r)
	}
	return set, ruleRows.Err()
}

// ReplaceSet atomically swaps the stored endpoint set for the given one.
func (s *TenantStore) ReplaceSet(set *endpoint.Set) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning set replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM endpoints"); err != nil {
		return fmt.Errorf("clearing endpoints: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM rules"); err != nil {
		return fmt.Errorf("clearing rules: %w", err)
	}

	for _, ep := range set.Endpoints {
		data, err := json.Marshal(ep)
		if err != nil {
			return fmt.Errorf("encoding endpoint %s: %w", ep.ID, err)
		}
		_, err = tx.Exec("INSERT INTO endpoints (id, method, path, data) VALUES (?, ?, ?, ?)",
			ep.ID, ep.Method, ep.Path, string(data))
		if err != nil {
			return fmt.Errorf("inserting endpoint %s: %w", ep.ID, err)
		}
	}
	for _, r := range set.Rules {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding rule %s: %w", r.ID, err)
		}
		_, err = tx.Exec("INSERT INTO rules (id, endpoint_id, priority, data) VALUES (?, ?, ?, ?)",
			r.ID, r.EndpointID, r.Priority, string(data))
		if err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteEndpoint removes one endpoint and its rules. Returns false when the
// endpoint did not exist.
func (s *TenantStore) DeleteEndpoint(endpointID string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning endpoint delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM endpoints WHERE id = ?", endpointID)
	if err != nil {
		return false, fmt.Errorf("deleting endpoint: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM rules WHERE endpoint_id = ?", endpointID); err != nil {
		return false, fmt.Errorf("deleting endpoint rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// Append writes one log entry, assigning its id and timestamp when unset.
func (s *TenantStore) Append(entry *requestlog.Entry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = id.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding log entry: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO request_logs (id, endpoint_id, timestamp, data)
		VALUES (?, ?, ?, ?)`,
		entry.ID, nullable(entry.EndpointID), entry.Timestamp.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// List returns entries newest first, honoring the query's endpoint filter,
// pagination cursor, and limit.
func (s *TenantStore) List(q requestlog.Query) ([]*requestlog.Entry, error) {
	limit := q.Limit
	if limit <= 0 || limit > requestlog.HistoryCap {
		limit = requestlog.HistoryCap
	}

	query := "SELECT data FROM request_logs WHERE 1=1"
	args := []any{}
	if q.EndpointID != "" {
		query += " AND endpoint_id = ?"
		args = append(args, q.EndpointID)
	}
	if q.BeforeID != "" {
		// Entry ids are lexicographically time-ordered, so the cursor is a
		// plain string comparison.
		query += " AND id < ?"
		args = append(args, q.BeforeID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing log entries: %w", err)
	}
	defer rows.Close()

	var entries []*requestlog.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		var e requestlog.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decoding log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Clear removes all log entries.
func (s *TenantStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM request_logs")
	if err != nil {
		return fmt.Errorf("clearing log entries: %w", err)
	}
	return nil
}

// Prune deletes entries older than the cutoff and reports how many went.
func (s *TenantStore) Prune(olderThan time.Time) (int, error) {
	res, err := s.db.Exec("DELETE FROM request_logs WHERE timestamp < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning log entries: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of stored log entries.
func (s *TenantStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM request_logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting log entries: %w", err)
	}
	return n, nil
}

// nullable maps an empty string to NULL so unmatched requests do not pin
// an empty endpoint id in the index.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
