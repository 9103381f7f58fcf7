package state

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/session"
)

// ConsoleSession is one authenticated browser session. It carries the
// upstream bearer token and the currently selected app.
type ConsoleSession struct {
	ID        string
	Token     string
	AppID     string
	User      session.User
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Context converts the stored session into the per-request context the
// upstream client consumes.
func (s *ConsoleSession) Context() session.Context {
	return session.Context{Token: s.Token, AppID: s.AppID}
}

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.DB}
}

// Create stores a new session and returns it with a generated id.
func (r *SessionRepository) Create(token string, user session.User, ttl time.Duration) (*ConsoleSession, error) {
	s := &ConsoleSession{
		ID:        uuid.New().String(),
		Token:     token,
		User:      user,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
	_, err := r.db.Exec(`
		INSERT INTO console_sessions (id, upstream_token, app_id, user_id, user_email, user_name, user_role, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Token, s.AppID, s.User.ID, s.User.Email, s.User.Name, s.User.Role, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a session by id, or nil when it is unknown or expired.
func (r *SessionRepository) Get(id string) (*ConsoleSession, error) {
	s := &ConsoleSession{}
	err := r.db.QueryRow(`
		SELECT id, upstream_token, COALESCE(app_id, '') as app_id,
		       user_id, user_email, COALESCE(user_name, '') as user_name,
		       COALESCE(user_role, '') as user_role, expires_at, created_at
		FROM console_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Token, &s.AppID, &s.User.ID, &s.User.Email, &s.User.Name, &s.User.Role, &s.ExpiresAt, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

// SelectApp records the app choice on an existing session.
func (r *SessionRepository) SelectApp(id, appID string) error {
	_, err := r.db.Exec("UPDATE console_sessions SET app_id = ? WHERE id = ?", appID, id)
	return err
}

// Delete removes a session.
func (r *SessionRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM console_sessions WHERE id = ?", id)
	return err
}

// DeleteExpired removes all sessions past their expiry. It returns the
// number of rows removed.
func (r *SessionRepository) DeleteExpired() (int64, error) {
	res, err := r.db.Exec("DELETE FROM console_sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
