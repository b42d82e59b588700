package store

import (
	"database/sql"
	"time"
)

// SpeedEvent is one logged vehicle speed. Each tracked vehicle produces
// exactly one event, written the first time a valid speed estimate becomes
// available for it.
type SpeedEvent struct {
	ID          int64
	SessionID   string
	TrackID     int
	Label       string
	SpeedKMH    float64
	SpeedLimit  float64
	IsOverspeed bool
	Confidence  float64
	RecordedAt  time.Time
}

// EventRepository provides persistence for speed events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the speed event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a new speed event.
func (r *EventRepository) Create(ev *SpeedEvent) error {
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}

	res, err := r.db.Exec(
		`INSERT INTO speed_events
		 (session_id, track_id, label, speed_kmh, speed_limit, is_overspeed, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.TrackID, ev.Label, ev.SpeedKMH, ev.SpeedLimit,
		ev.IsOverspeed, ev.Confidence, ev.RecordedAt,
	)
	if err != nil {
		return err
	}

	ev.ID, err = res.LastInsertId()
	return err
}

// Recent returns the most recent events across all sessions, newest first.
func (r *EventRepository) Recent(limit int) ([]*SpeedEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, track_id, label, speed_kmh, speed_limit,
		        is_overspeed, confidence, recorded_at
		 FROM speed_events ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// BySession returns all events recorded during one session, oldest first.
func (r *EventRepository) BySession(sessionID string) ([]*SpeedEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, track_id, label, speed_kmh, speed_limit,
		        is_overspeed, confidence, recorded_at
		 FROM speed_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountOverspeed returns the number of overspeed events in a session.
func (r *EventRepository) CountOverspeed(sessionID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM speed_events WHERE session_id = ? AND is_overspeed = 1`,
		sessionID,
	).Scan(&count)
	return count, err
}

// scanEvents reads event rows into a slice.
func scanEvents(rows *sql.Rows) ([]*SpeedEvent, error) {
	var events []*SpeedEvent
	for rows.Next() {
		ev := &SpeedEvent{}
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TrackID, &ev.Label,
			&ev.SpeedKMH, &ev.SpeedLimit, &ev.IsOverspeed, &ev.Confidence,
			&ev.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
