package state

import (
	"database/sql"
	"time"
)

// AuditEntry records one mutating action taken through the console.
type AuditEntry struct {
	ID         int64
	UserID     string
	UserEmail  string
	Action     string
	AppID      string
	TemplateID string
	Details    string
	CreatedAt  time.Time
}

// AuditFilter narrows ListAuditLog results.
type AuditFilter struct {
	UserID string
	Action string
	AppID  string
	Limit  int
}

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db.DB}
}

// Add appends an audit log entry.
func (r *AuditRepository) Add(entry *AuditEntry) error {
	entry.CreatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO audit_log (user_id, user_email, action, app_id, template_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.UserEmail, entry.Action, entry.AppID, entry.TemplateID, entry.Details, entry.CreatedAt,
	)
	return err
}

// List returns audit entries, newest first.
func (r *AuditRepository) List(filter AuditFilter) ([]AuditEntry, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(user_email, ''), action,
		       COALESCE(app_id, ''), COALESCE(template_id, ''), COALESCE(details, ''), created_at
		FROM audit_log WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.AppID != "" {
		query += " AND app_id = ?"
		args = append(args, filter.AppID)
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.Action, &e.AppID, &e.TemplateID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes entries older than the cutoff and returns the number
// removed.
func (r *AuditRepository) Prune(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM audit_log WHERE created_at < ?", olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
