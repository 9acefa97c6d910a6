package rover_nav

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TelemetryConfig controls the step recorder.
type TelemetryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TelemetryRun is one process lifetime of the controller.
type TelemetryRun struct {
	RunID        string          `json:"run_id"`
	StartedAt    int64           `json:"started_at"`
	VehicleColor Color           `json:"vehicle_color"`
	TargetColor  Color           `json:"target_color"`
	ConfigJSON   json.RawMessage `json:"config_json,omitempty"`
}

// StepRow is a persisted StepRecord.
type StepRow struct {
	RunID      string
	Seq        uint64
	StartedAt  int64
	DurationNs int64
	Mode       string
	NextMode   string
	Event      sql.NullString
	Correction sql.NullFloat64
	Steer      sql.NullFloat64
	VehicleX   sql.NullFloat64
	VehicleY   sql.NullFloat64
	TargetX    sql.NullFloat64
	TargetY    sql.NullFloat64
	Error      sql.NullString
}

// TelemetryStore persists runs and steps in SQLite.
type TelemetryStore struct {
	db *sql.DB
}

// OpenTelemetry opens (or creates) the database at path and applies pending
// migrations.
func OpenTelemetry(path string) (*TelemetryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &TelemetryStore{db: db}, nil
}

// migrateUp runs all pending migrations from the embedded migrations directory.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	// Not closing m: it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *TelemetryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a new run and returns its generated id. cfg is stored as
// JSON for later inspection.
func (s *TelemetryStore) StartRun(colors Colors, cfg any) (string, error) {
	runID := uuid.New().String()

	var cfgJSON any
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("marshal run config: %w", err)
		}
		cfgJSON = string(b)
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, vehicle_color, target_color, config_json)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), string(colors.Vehicle), string(colors.Target), cfgJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// GetRun returns a run by id.
func (s *TelemetryStore) GetRun(runID string) (*TelemetryRun, error) {
	var r TelemetryRun
	var vehicle, target string
	var cfgJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, started_at, vehicle_color, target_color, config_json
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.StartedAt, &vehicle, &target, &cfgJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.VehicleColor = Color(vehicle)
	r.TargetColor = Color(target)
	if cfgJSON.Valid {
		r.ConfigJSON = json.RawMessage(cfgJSON.String)
	}
	return &r, nil
}

// ListRuns returns all runs, most recent first.
func (s *TelemetryStore) ListRuns() ([]TelemetryRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at, vehicle_color, target_color
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []TelemetryRun
	for rows.Next() {
		var r TelemetryRun
		var vehicle, target string
		if err := rows.Scan(&r.RunID, &r.StartedAt, &vehicle, &target); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.VehicleColor = Color(vehicle)
		r.TargetColor = Color(target)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordStep persists one step of runID.
func (s *TelemetryStore) RecordStep(runID string, rec StepRecord) error {
	out := rec.Outcome

	var event, errText, correction, steer, vx, vy, tx, ty any
	if rec.Err != nil {
		errText = rec.Err.Error()
	} else {
		event = out.Event.String()
		if out.Mode == ModeTurning {
			correction = out.Correction
			steer = out.Steer.Radians()
			vx, vy = out.Snapshot.Vehicle.X, out.Snapshot.Vehicle.Y
			tx, ty = out.Snapshot.Target.X, out.Snapshot.Target.Y
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO steps (
			run_id, seq, started_at, duration_ns, mode, next_mode, event,
			correction, steer, vehicle_x, vehicle_y, target_x, target_y, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(rec.Seq), rec.Start.UnixNano(), rec.Duration.Nanoseconds(),
		out.Mode.String(), out.Next.String(), event,
		correction, steer, vx, vy, tx, ty, errText,
	)
	if err != nil {
		return fmt.Errorf("insert step %d: %w", rec.Seq, err)
	}
	return nil
}

// ListSteps returns the steps of a run ordered by sequence number.
func (s *TelemetryStore) ListSteps(runID string) ([]StepRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, seq, started_at, duration_ns, mode, next_mode, event,
		       correction, steer, vehicle_x, vehicle_y, target_x, target_y, error
		FROM steps
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var r StepRow
		var seq int64
		if err := rows.Scan(
			&r.RunID, &seq, &r.StartedAt, &r.DurationNs, &r.Mode, &r.NextMode, &r.Event,
			&r.Correction, &r.Steer, &r.VehicleX, &r.VehicleY, &r.TargetX, &r.TargetY, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		r.Seq = uint64(seq)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Listener returns a StepListener recording into runID. Write failures are
// logged and do not stop the controller.
func (s *TelemetryStore) Listener(runID string, logger *slog.Logger) StepListener {
	logger = orDiscard(logger)
	return func(rec StepRecord) {
		if err := s.RecordStep(runID, rec); err != nil {
			logger.Warn("telemetry write failed", "seq", rec.Seq, "err", err)
		}
	}
}
