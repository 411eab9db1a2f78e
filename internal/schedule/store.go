package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"broadcast-orchestrator/internal/platform/storage"
	"broadcast-orchestrator/internal/schedule/migrations"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown schedule ids.
var ErrNotFound = errors.New("schedule not found")

// Store persists schedules.
type Store interface {
	List(ctx context.Context) ([]Schedule, error)
	Get(ctx context.Context, id string) (Schedule, error)
	Create(ctx context.Context, s Schedule) (Schedule, error)
	Update(ctx context.Context, s Schedule) (Schedule, error)
	Delete(ctx context.Context, id string) error
}

// SQLStore is a Store on database/sql. List-valued fields are stored as JSON
// text so the schema is the same on SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect storage.Dialect
	now     func() time.Time
}

// NewSQLStore applies the schedule migrations to db and returns a store on it.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect storage.Dialect) (*SQLStore, error) {
	if err := storage.ApplyMigrations(ctx, db, dialect, migrations.FS, "."); err != nil {
		return nil, fmt.Errorf("run schedule migrations: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

const selectColumns = `SELECT id, name, is_enabled, timezone, days_of_week, window_start, window_end,
       timelines, destination_ids, created_at, updated_at
  FROM schedules`

func (s *SQLStore) List(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	out := []Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Schedule, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(selectColumns+` WHERE id = ?`), id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return sc, nil
}

// Create assigns a new id and timestamps and inserts sc.
func (s *SQLStore) Create(ctx context.Context, sc Schedule) (Schedule, error) {
	sc.ID = uuid.NewString()
	sc.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	sc.UpdatedAt = sc.CreatedAt

	cols, err := encodeLists(sc)
	if err != nil {
		return Schedule{}, err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO schedules (
		   id, name, is_enabled, timezone, days_of_week, window_start, window_end,
		   timelines, destination_ids, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sc.ID, sc.Name, sc.Enabled, sc.Timezone, cols.days, sc.WindowStart, sc.WindowEnd,
		cols.timelines, cols.destinations, sc.CreatedAt.UnixMilli(), sc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return sc, nil
}

// Update replaces every mutable field of the schedule with id sc.ID.
func (s *SQLStore) Update(ctx context.Context, sc Schedule) (Schedule, error) {
	existing, err := s.Get(ctx, sc.ID)
	if err != nil {
		return Schedule{}, err
	}
	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	cols, err := encodeLists(sc)
	if err != nil {
		return Schedule{}, err
	}
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`UPDATE schedules
		    SET name = ?, is_enabled = ?, timezone = ?, days_of_week = ?,
		        window_start = ?, window_end = ?, timelines = ?, destination_ids = ?,
		        updated_at = ?
		  WHERE id = ?`),
		sc.Name, sc.Enabled, sc.Timezone, cols.days, sc.WindowStart, sc.WindowEnd,
		cols.timelines, cols.destinations, sc.UpdatedAt.UnixMilli(), sc.ID,
	)
	if err != nil {
		return Schedule{}, fmt.Errorf("update schedule %s: %w", sc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Schedule{}, fmt.Errorf("%w: %s", ErrNotFound, sc.ID)
	}
	return sc, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM schedules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type listColumns struct {
	days, timelines, destinations string
}

func encodeLists(sc Schedule) (listColumns, error) {
	var cols listColumns
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&cols.days, nonNil(sc.Days)},
		{&cols.timelines, nonNil(sc.Timelines)},
		{&cols.destinations, nonNil(sc.DestinationIDs)},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return listColumns{}, fmt.Errorf("encode schedule: %w", err)
		}
		*f.dst = string(b)
	}
	return cols, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (Schedule, error) {
	var (
		sc                            Schedule
		days, timelines, destinations string
		createdAt, updatedAt          int64
	)
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Enabled, &sc.Timezone, &days, &sc.WindowStart, &sc.WindowEnd,
		&timelines, &destinations, &createdAt, &updatedAt); err != nil {
		return Schedule{}, err
	}
	if err := json.Unmarshal([]byte(days), &sc.Days); err != nil {
		return Schedule{}, fmt.Errorf("decode days_of_week: %w", err)
	}
	if err := json.Unmarshal([]byte(timelines), &sc.Timelines); err != nil {
		return Schedule{}, fmt.Errorf("decode timelines: %w", err)
	}
	if err := json.Unmarshal([]byte(destinations), &sc.DestinationIDs); err != nil {
		return Schedule{}, fmt.Errorf("decode destination_ids: %w", err)
	}
	sc.CreatedAt = time.UnixMilli(createdAt).UTC()
	sc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return sc, nil
}
