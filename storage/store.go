// Package storage persists recorded schedules, such as counterexamples, in SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"pruntime/event"
	"pruntime/scheduler"
)

var ErrNotFound = errors.New("storage: schedule not found")

// Summary describes a stored schedule without its steps
type Summary struct {
	ID        int64
	Label     string
	Steps     int
	CreatedAt time.Time
}

// Store provides SQLite-backed persistence for schedules.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it if needed, and migrates it to the latest schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "open: enable foreign keys")
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// New returns a Store bound to an existing, migrated database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSchedule stores the schedule under the label and returns its id.
func (s *Store) SaveSchedule(ctx context.Context, label string, schedule scheduler.Schedule) (int64, error) {
	if label == "" {
		return -1, errors.New("save schedule: label is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, errors.Wrap(err, "save schedule: begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := tx.ExecContext(ctx, `INSERT INTO schedules (label, steps, created_at) VALUES (?, ?, ?)`, label, len(schedule), now)
	if err != nil {
		return -1, errors.Wrap(err, "save schedule: insert")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return -1, errors.Wrap(err, "save schedule: last insert id")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO schedule_steps (schedule_id, depth, sender_name, sender_index, target_name, target_index, event, message, unhandled)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return -1, errors.Wrap(err, "save schedule: prepare")
	}
	defer stmt.Close()
	for i, c := range schedule {
		_, err := stmt.ExecContext(ctx, id, i, c.Sender.Name, c.Sender.Index, c.Target.Name, c.Target.Index, string(c.Event), string(c.Message), c.Unhandled)
		if err != nil {
			return -1, errors.Wrapf(err, "save schedule: insert step %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return -1, errors.Wrap(err, "save schedule: commit")
	}
	return id, nil
}

// LoadSchedule returns the steps of the stored schedule in depth order.
// Choices are renumbered from depth 0.
func (s *Store) LoadSchedule(ctx context.Context, id int64) (scheduler.Schedule, error) {
	var steps int
	err := s.db.QueryRowContext(ctx, `SELECT steps FROM schedules WHERE id = ?`, id).Scan(&steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "load schedule %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load schedule: scan")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT depth, sender_name, sender_index, target_name, target_index, event, message, unhandled
		FROM schedule_steps WHERE schedule_id = ? ORDER BY depth`, id)
	if err != nil {
		return nil, errors.Wrap(err, "load schedule: query steps")
	}
	defer rows.Close()

	schedule := make(scheduler.Schedule, 0, steps)
	for rows.Next() {
		var c scheduler.Choice
		var ev, msg string
		if err := rows.Scan(&c.Depth, &c.Sender.Name, &c.Sender.Index, &c.Target.Name, &c.Target.Index, &ev, &msg, &c.Unhandled); err != nil {
			return nil, errors.Wrap(err, "load schedule: scan step")
		}
		c.Event = event.Name(ev)
		c.Message = event.EventId(msg)
		schedule = append(schedule, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "load schedule: rows")
	}
	if len(schedule) != steps {
		return nil, errors.AssertionFailedf("load schedule %d: expected %d steps, found %d", id, steps, len(schedule))
	}
	return schedule, nil
}

// ListSchedules returns the stored schedules, most recent first.
func (s *Store) ListSchedules(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, steps, created_at FROM schedules ORDER BY id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list schedules: query")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Label, &sum.Steps, &created); err != nil {
			return nil, errors.Wrap(err, "list schedules: scan")
		}
		sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, errors.Wrapf(err, "list schedules: parse created_at of %d", sum.ID)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list schedules: rows")
	}
	return out, nil
}

// DeleteSchedule removes the schedule and its steps.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "delete schedule: begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_steps WHERE schedule_id = ?`, id); err != nil {
		return errors.Wrap(err, "delete schedule: steps")
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete schedule")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete schedule: rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "delete schedule %d", id)
	}
	return errors.Wrap(tx.Commit(), "delete schedule: commit")
}
