// Package audit provides the optional SQLite command audit log: one row
// per Command Engine call, recording what was requested, whether it
// succeeded, and how long it took.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/migrations"
)

// CommandAudit is a single recorded Command Engine call.
type CommandAudit struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	EntityID  string         `json:"entity_id"`
	Operation string         `json:"operation"` // "turn_on" or "turn_off"
	Params    map[string]any `json:"params,omitempty"`
	Succeeded bool           `json:"succeeded"`
	Error     string         `json:"error,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
}

// Filter controls which audit rows List returns.
type Filter struct {
	EntityID  string // optional: filter by entity id
	Operation string // optional: filter by operation name
	Limit     int    // default 50, max 200
	Offset    int
}

// ListResult is a page of audit rows.
type ListResult struct {
	Entries []CommandAudit `json:"entries"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// Repository defines the command audit log's persistence surface.
type Repository interface {
	Record(ctx context.Context, entry *CommandAudit) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Open opens (creating if necessary) the SQLite database at cfg.Path and
// applies the embedded schema. WAL mode and busy-timeout are applied per
// cfg before any query runs, since the audit writer and any diagnostics
// API reader share the same file.
func Open(ctx context.Context, cfg config.AuditConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	if cfg.WALMode {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	busyMS := cfg.BusyTimeout * 1000
	if busyMS <= 0 {
		busyMS = 5000
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyMS)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}

// SQLiteRepository persists the command audit log to SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an already-opened, already-migrated db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one audit row. ID and CreatedAt are generated if unset.
func (r *SQLiteRepository) Record(ctx context.Context, entry *CommandAudit) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var paramsJSON *string
	if entry.Params != nil {
		b, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("marshalling command params: %w", err)
		}
		s := string(b)
		paramsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, created_at, entity_id, operation, params, succeeded, error, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt.Format(time.RFC3339), entry.EntityID, entry.Operation,
		paramsJSON, boolToInt(entry.Succeeded), nullableString(entry.Error), entry.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("inserting command audit row: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit rows matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_audit %s", where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command audit rows: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, created_at, entity_id, operation, params, succeeded, error, latency_ms
		 FROM command_audit %s ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command audit rows: %w", err)
	}
	defer rows.Close()

	var entries []CommandAudit
	for rows.Next() {
		var e CommandAudit
		var createdAt string
		var paramsJSON, errText sql.NullString
		var succeeded int

		if err := rows.Scan(&e.ID, &createdAt, &e.EntityID, &e.Operation,
			&paramsJSON, &succeeded, &errText, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("scanning command audit row: %w", err)
		}

		e.Succeeded = succeeded != 0
		if errText.Valid {
			e.Error = errText.String
		}
		if paramsJSON.Valid && paramsJSON.String != "" {
			var params map[string]any
			if json.Unmarshal([]byte(paramsJSON.String), &params) == nil {
				e.Params = params
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command audit timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command audit rows: %w", err)
	}
	if entries == nil {
		entries = []CommandAudit{}
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
