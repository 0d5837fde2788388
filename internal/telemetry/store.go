// Package telemetry keeps a sqlite drive log of every control cycle while
// recording is on and renders steering history plots from it.
package telemetry

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sample is one control cycle.
type Sample struct {
	RunID      string
	RecordedAt time.Time
	Result     string
	RawAngle   float64
	Angle      float64
	Sides      int
	Command    motor.WheelCommand
}

// Run is one recording session.
type Run struct {
	ID        string
	StartedAt time.Time
	StoppedAt *time.Time
}

// Store is the drive log database.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp applies every pending migration.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, 0 when none.
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate builds a migrator over the embedded migrations. It is not
// closed because that would close the shared connection.
func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// StartRun inserts a run.
func (s *Store) StartRun(id string, at time.Time) error {
	_, err := s.Exec(`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`, id, at.UnixNano())
	if err != nil {
		return fmt.Errorf("start run %s: %w", id, err)
	}
	return nil
}

// StopRun marks a run finished.
func (s *Store) StopRun(id string, at time.Time) error {
	_, err := s.Exec(`UPDATE runs SET stopped_at = ? WHERE run_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("stop run %s: %w", id, err)
	}
	return nil
}

// Insert stores a sample.
func (s *Store) Insert(sm Sample) error {
	_, err := s.Exec(`
		INSERT INTO samples (run_id, recorded_at, result, raw_angle, angle, sides,
			front_left, front_right, back_left, back_right)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sm.RunID, sm.RecordedAt.UnixNano(), sm.Result, sm.RawAngle, sm.Angle, sm.Sides,
		sm.Command[motor.FrontLeft], sm.Command[motor.FrontRight],
		sm.Command[motor.BackLeft], sm.Command[motor.BackRight],
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Runs lists runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(`SELECT run_id, started_at, stopped_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			stopped sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &stopped); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if stopped.Valid {
			t := time.Unix(0, stopped.Int64)
			r.StoppedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Samples returns a run's samples in recording order.
func (s *Store) Samples(runID string) ([]Sample, error) {
	rows, err := s.Query(`
		SELECT recorded_at, result, raw_angle, angle, sides,
			front_left, front_right, back_left, back_right
		FROM samples WHERE run_id = ? ORDER BY recorded_at, sample_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		sm := Sample{RunID: runID}
		var at int64
		if err := rows.Scan(&at, &sm.Result, &sm.RawAngle, &sm.Angle, &sm.Sides,
			&sm.Command[motor.FrontLeft], &sm.Command[motor.FrontRight],
			&sm.Command[motor.BackLeft], &sm.Command[motor.BackRight]); err != nil {
			return nil, err
		}
		sm.RecordedAt = time.Unix(0, at)
		out = append(out, sm)
	}
	return out, rows.Err()
}
