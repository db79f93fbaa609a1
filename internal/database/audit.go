package database

import (
	"database/sql"
	"fmt"
	"strings"

	"dnsmanager/internal/audit"
)

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// LogEvent appends ev to the audit log. Events that break the taxonomy are
// rejected.
func (db *DB) LogEvent(ev audit.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	var details sql.NullString
	if len(ev.Details) > 0 {
		details = sql.NullString{String: string(ev.Details), Valid: true}
	}
	_, err := db.conn.Exec(
		`INSERT INTO audit_log (created_at, username, action, status, zone, record_type, details, error_message, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.Timestamp, ev.User, string(ev.Action), string(ev.Status), nullable(ev.Zone),
		nullable(ev.RecordType), details, nullable(ev.ErrorMessage), ev.IPAddress,
	)
	return err
}

// ListEvents returns the newest events matching f. f.Limit must already be
// clamped by the caller.
func (db *DB) ListEvents(f audit.Filter) ([]audit.Event, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.User != "" {
		add("username = $%d", f.User)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.Zone != "" {
		add("zone = $%d", f.Zone)
	}

	query := `SELECT id, created_at, username, action, status, zone, record_type, details, error_message, ip_address
		FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var ev audit.Event
		var action, status string
		var zone, recordType, details, errMsg sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.User, &action, &status, &zone, &recordType,
			&details, &errMsg, &ev.IPAddress); err != nil {
			return nil, err
		}
		ev.Action = audit.Action(action)
		ev.Status = audit.Status(status)
		ev.Zone = zone.String
		ev.RecordType = recordType.String
		ev.ErrorMessage = errMsg.String
		if details.Valid {
			ev.Details = []byte(details.String)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
