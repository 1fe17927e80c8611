package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// MutationKind identifies which control-API operation produced an Audit
// Entry (SPEC_FULL.md §3).
type MutationKind string

const (
	KindCreate MutationKind = "create"
	KindUpdate MutationKind = "update"
	KindDelete MutationKind = "delete"
)

// Entry is an Audit Entry: a record of one control-API mutation, independent
// of the flat backing file and never itself authoritative for DNS answers.
type Entry struct {
	OccurredAt time.Time
	Kind       MutationKind
	RecordName string
	Snapshot   any // marshalled to JSON; typically the post-mutation record
	HTTPStatus int
}

// Writer appends Audit Entries to an audit.DB. A nil Writer (e.g. because
// AUDIT_DB_PATH was left empty) is valid and every method becomes a no-op,
// so callers never need to branch on whether auditing is enabled.
type Writer struct {
	db  *DB
	log *slog.Logger
}

// NewWriter wraps db for writing. db may be nil to disable auditing.
func NewWriter(db *DB, log *slog.Logger) *Writer {
	return &Writer{db: db, log: log}
}

// Record appends e synchronously. Failures are logged at WARN and otherwise
// swallowed — the audit log is never allowed to fail a mutation response
// (SPEC_FULL.md §7).
func (w *Writer) Record(ctx context.Context, e Entry) {
	if w == nil || w.db == nil {
		return
	}

	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		if w.log != nil {
			w.log.Warn("audit: failed to marshal snapshot", "error", err, "record", e.RecordName)
		}
		return
	}

	const stmt = `INSERT INTO audit_entries (occurred_at, kind, record_name, snapshot, http_status) VALUES (?, ?, ?, ?, ?)`
	_, err = w.db.conn.ExecContext(ctx, stmt, e.OccurredAt.UTC().Format(time.RFC3339Nano), string(e.Kind), e.RecordName, string(snapshot), e.HTTPStatus)
	if err != nil && w.log != nil {
		w.log.Warn("audit: failed to record entry", "error", err, "record", e.RecordName, "kind", e.Kind)
	}
}

// Close closes the underlying database, if any.
func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
