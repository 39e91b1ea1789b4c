// Package storage persists training runs, per-generation records and
// champion genomes in SQLite.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/neural"

	_ "modernc.org/sqlite"
)

// ErrNoRun is returned when generations are reported before StartRun.
var ErrNoRun = errors.New("no active run")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time // zero while running
	Seed            int64
	ConfigYAML      string
	Generations     int
	ChampionFitness float64
	Solved          bool
}

// GenerationRecord is one row of the generations table.
type GenerationRecord struct {
	RunID          string
	Generation     int
	Ticks          int
	BestFitness    float64
	MeanFitness    float64
	BestEver       float64
	Species        int
	InvalidActions int
	DurationMs     float64
}

// SQLiteStore records training runs. It implements neural.Reporter.
type SQLiteStore struct {
	path string

	mu    sync.RWMutex
	db    *sql.DB
	runID string
}

// NewSQLiteStore creates a store backed by the database file at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates missing tables.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// StartRun inserts a new run and makes it the target of ReportGeneration.
// It returns the run ID.
func (s *SQLiteStore) StartRun(ctx context.Context, cfg *config.Config, seed int64) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, seed, config)
		VALUES (?, ?, ?, ?)
	`, id, time.Now().UTC().Format(time.RFC3339Nano), seed, string(cfgYAML))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return id, nil
}

// RunID returns the active run, or "" before StartRun.
func (s *SQLiteStore) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// ReportGeneration stores the generation record and its champion genome.
func (s *SQLiteStore) ReportGeneration(ctx context.Context, r *neural.GenerationReport) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	runID := s.RunID()
	if runID == "" {
		return ErrNoRun
	}

	rec := GenerationRecord{
		RunID:       runID,
		Generation:  r.Generation,
		BestFitness: r.ChampionFitness,
		BestEver:    r.BestEver,
		Species:     r.Species.Count,
		DurationMs:  float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Result != nil {
		rec.Ticks = r.Result.Ticks
		rec.InvalidActions = r.Result.InvalidActions
		if fitness := r.Result.Fitness(); len(fitness) > 0 {
			rec.MeanFitness = stat.Mean(fitness, nil)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generations (run_id, generation, ticks, best_fitness, mean_fitness, best_ever, species, invalid_actions, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			ticks = excluded.ticks,
			best_fitness = excluded.best_fitness,
			mean_fitness = excluded.mean_fitness,
			best_ever = excluded.best_ever,
			species = excluded.species,
			invalid_actions = excluded.invalid_actions,
			duration_ms = excluded.duration_ms
	`, rec.RunID, rec.Generation, rec.Ticks, rec.BestFitness, rec.MeanFitness, rec.BestEver, rec.Species, rec.InvalidActions, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("insert generation %d: %w", r.Generation, err)
	}

	if r.Champion != nil {
		var buf bytes.Buffer
		if err := neural.EncodeGenome(&buf, r.Champion); err != nil {
			return fmt.Errorf("encode champion: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO champions (run_id, generation, fitness, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, generation) DO UPDATE SET
				fitness = excluded.fitness,
				payload = excluded.payload
		`, runID, r.Generation, r.ChampionFitness, buf.Bytes())
		if err != nil {
			return fmt.Errorf("insert champion %d: %w", r.Generation, err)
		}
	}

	return tx.Commit()
}

// FinishRun records the outcome of the active run.
func (s *SQLiteStore) FinishRun(ctx context.Context, summary *neural.Summary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	runID := s.RunID()
	if runID == "" {
		return ErrNoRun
	}
	if summary == nil {
		summary = &neural.Summary{}
	}

	_, err = db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, generations = ?, champion_fitness = ?, solved = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339Nano), summary.Generations, summary.ChampionFitness, summary.Solved, runID)
	return err
}

// GetRun returns a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return RunRecord{}, false, err
	}

	var (
		rec         RunRecord
		started     string
		finished    sql.NullString
		fitness     sql.NullFloat64
		generations sql.NullInt64
		solved      sql.NullBool
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, seed, config, generations, champion_fitness, solved
		FROM runs WHERE id = ?
	`, id).Scan(&rec.ID, &started, &finished, &rec.Seed, &rec.ConfigYAML, &generations, &fitness, &solved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunRecord{}, false, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return RunRecord{}, false, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	rec.Generations = int(generations.Int64)
	rec.ChampionFitness = fitness.Float64
	rec.Solved = solved.Bool
	return rec, true, nil
}

// Generations returns every stored generation of a run in order.
func (s *SQLiteStore) Generations(ctx context.Context, runID string) ([]GenerationRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, generation, ticks, best_fitness, mean_fitness, best_ever, species, invalid_actions, duration_ms
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		if err := rows.Scan(&rec.RunID, &rec.Generation, &rec.Ticks, &rec.BestFitness, &rec.MeanFitness,
			&rec.BestEver, &rec.Species, &rec.InvalidActions, &rec.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetChampion returns the champion genome of one generation.
func (s *SQLiteStore) GetChampion(ctx context.Context, runID string, generation int) (*genetics.Genome, float64, bool, error) {
	return s.queryChampion(ctx, `
		SELECT payload, fitness FROM champions WHERE run_id = ? AND generation = ?
	`, runID, generation)
}

// BestChampion returns the fittest champion of a run. Ties go to the
// earliest generation.
func (s *SQLiteStore) BestChampion(ctx context.Context, runID string) (*genetics.Genome, float64, bool, error) {
	return s.queryChampion(ctx, `
		SELECT payload, fitness FROM champions WHERE run_id = ?
		ORDER BY fitness DESC, generation ASC LIMIT 1
	`, runID)
}

func (s *SQLiteStore) queryChampion(ctx context.Context, query string, args ...any) (*genetics.Genome, float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, 0, false, err
	}

	var (
		payload []byte
		fitness float64
	)
	err = db.QueryRowContext(ctx, query, args...).Scan(&payload, &fitness)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}

	genome, err := neural.DecodeGenome(bytes.NewReader(payload))
	if err != nil {
		return nil, 0, false, fmt.Errorf("decode champion: %w", err)
	}
	return genome, fitness, true, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			seed INTEGER NOT NULL,
			config TEXT NOT NULL,
			generations INTEGER,
			champion_fitness REAL,
			solved INTEGER
		);
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL REFERENCES runs(id),
			generation INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			mean_fitness REAL NOT NULL,
			best_ever REAL NOT NULL,
			species INTEGER NOT NULL,
			invalid_actions INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
		CREATE TABLE IF NOT EXISTS champions (
			run_id TEXT NOT NULL REFERENCES runs(id),
			generation INTEGER NOT NULL,
			fitness REAL NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}
