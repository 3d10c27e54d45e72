// Package audit records service calls that change routers or devices in
// the audit_logs table and queries that history.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit log.
const (
	ActionRefresh        = "refresh"
	ActionReboot         = "reboot"
	ActionReconnect      = "reconnect"
	ActionFirmwareUpdate = "firmware_update"
	ActionCleanup        = "cleanup"
	ActionInternetAccess = "internet_access"
)

// Sources of a recorded call.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Outcomes of a recorded call.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Entry is a single audit trail record.
type Entry struct {
	ID       string `json:"id"`
	Action   string `json:"action"`
	RouterID string `json:"router_id"`
	MAC      string `json:"mac,omitempty"`
	// Subject and Role identify the token holder. Both are empty for
	// MQTT commands.
	Subject   string         `json:"subject,omitempty"`
	Role      string         `json:"role,omitempty"`
	Source    string         `json:"source"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action   string // optional
	RouterID string // optional
	MAC      string // optional, compared case-insensitively
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is one page of audit entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores audit entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Action == "" || e.RouterID == "" || e.Source == "" {
		return fmt.Errorf("audit entry requires action, router and source")
	}
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	e.MAC = strings.ToUpper(e.MAC)

	var detailsJSON *string
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, router_id, mac, subject, role, source, outcome, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.RouterID,
		nullableString(e.MAC), nullableString(e.Subject), nullableString(e.Role),
		e.Source, e.Outcome, detailsJSON,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.RouterID != "" {
		conditions = append(conditions, "router_id = ?")
		args = append(args, filter.RouterID)
	}
	if filter.MAC != "" {
		conditions = append(conditions, "mac = ?")
		args = append(args, strings.ToUpper(filter.MAC))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, action, router_id, mac, subject, role, source, outcome, details, created_at
		 FROM audit_logs %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var mac, subject, role, detailsJSON sql.NullString
	var createdAt string

	if err := rows.Scan(&e.ID, &e.Action, &e.RouterID, &mac, &subject, &role,
		&e.Source, &e.Outcome, &detailsJSON, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit log: %w", err)
	}
	e.MAC = mac.String
	e.Subject = subject.String
	e.Role = role.String

	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			e.Details = details
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
