package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session represents one processing run of the pipeline.
type Session struct {
	ID         string
	Source     string
	SpeedLimit float64
	StartedAt  time.Time
	EndedAt    *time.Time
	Frames     int
	Vehicles   int
	Overspeed  int
}

// SessionRepository provides persistence for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session row at the start of a run.
func (r *SessionRepository) Create(sess *Session) error {
	sess.StartedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, speed_limit, started_at)
		 VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.SpeedLimit, sess.StartedAt,
	)
	return err
}

// Finish records the end of a run together with its final counters.
func (r *SessionRepository) Finish(id string, frames, vehicles, overspeed int) error {
	now := time.Now()

	res, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, vehicles = ?, overspeed = ?
		 WHERE id = ?`,
		now, frames, vehicles, overspeed, id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var endedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, source, speed_limit, started_at, ended_at, frames, vehicles, overspeed
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Source, &sess.SpeedLimit, &sess.StartedAt,
		&endedAt, &sess.Frames, &sess.Vehicles, &sess.Overspeed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return sess, nil
}

// List returns all sessions ordered by start time, most recent first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, source, speed_limit, started_at, ended_at, frames, vehicles, overspeed
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var endedAt sql.NullTime

		if err := rows.Scan(&sess.ID, &sess.Source, &sess.SpeedLimit, &sess.StartedAt,
			&endedAt, &sess.Frames, &sess.Vehicles, &sess.Overspeed); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}
