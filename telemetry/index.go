package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Index writes turns to SQLite from a background goroutine so recording
// never blocks a turn. Turns that arrive while the writer is behind are
// dropped; the turn log remains complete.
type Index struct {
	db *sql.DB

	ch     chan Turn
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
	seen   sync.Map // match id -> struct{}
}

// MatchSummary is one row of Index.Matches.
type MatchSummary struct {
	ID         string
	Planet     string
	Team       string
	StartedAt  time.Time
	Turns      int
	LastRound  int
	PeakUnits  int
	Karbonite  int
	Skipped    int
	EventCount int
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &Index{db: db, ch: make(chan Turn, 4096)}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT NOT NULL,
			planet TEXT NOT NULL,
			team TEXT NOT NULL,
			started_at TEXT NOT NULL,
			PRIMARY KEY (id, planet, team)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			match_id TEXT NOT NULL,
			planet TEXT NOT NULL,
			team TEXT NOT NULL,
			round INTEGER NOT NULL,
			karbonite INTEGER NOT NULL,
			map_karbonite INTEGER NOT NULL,
			units INTEGER NOT NULL,
			enemies INTEGER NOT NULL,
			endangered INTEGER NOT NULL,
			sites INTEGER NOT NULL,
			goals TEXT NOT NULL,
			events INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, planet, team, round)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_round ON turns(round);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record queues t for the writer.
func (ix *Index) Record(t Turn) error {
	if ix == nil || ix.closed.Load() {
		return nil
	}
	select {
	case ix.ch <- t:
	default:
	}
	return nil
}

// Close drains the queue and closes the database.
func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		ix.closed.Store(true)
		close(ix.ch)
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

func (ix *Index) loop() {
	for t := range ix.ch {
		if err := ix.insert(t); err != nil {
			slog.Warn("turn index write failed", "match", t.Match, "round", t.Round, "error", err)
		}
	}
}

func (ix *Index) insert(t Turn) error {
	key := t.Match + "/" + string(t.Planet) + "/" + string(t.Team)
	if _, loaded := ix.seen.LoadOrStore(key, struct{}{}); !loaded {
		_, err := ix.db.Exec(`INSERT OR IGNORE INTO matches(id, planet, team, started_at) VALUES(?,?,?,?)`,
			t.Match, string(t.Planet), string(t.Team), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	units := 0
	for _, n := range t.Units {
		units += n
	}
	_, err = ix.db.Exec(`INSERT OR REPLACE INTO turns(
			match_id, planet, team, round, karbonite, map_karbonite, units, enemies,
			endangered, sites, goals, events, skipped, elapsed_us, raw_json)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Match, string(t.Planet), string(t.Team), t.Round, t.Karbonite, t.MapKarbonite, units,
		t.Enemies, t.Endangered, t.Sites, strings.Join(t.Goals, ","), len(t.Events),
		boolInt(t.Skipped), t.ElapsedUs, string(raw))
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Matches summarizes every recorded match, newest first.
func (ix *Index) Matches(ctx context.Context) ([]MatchSummary, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT m.id, m.planet, m.team, m.started_at,
			COUNT(t.round), COALESCE(MAX(t.round), 0), COALESCE(MAX(t.units), 0),
			COALESCE((SELECT karbonite FROM turns l
				WHERE l.match_id = m.id AND l.planet = m.planet AND l.team = m.team
				ORDER BY l.round DESC LIMIT 1), 0),
			COALESCE(SUM(t.skipped), 0), COALESCE(SUM(t.events), 0)
		FROM matches m
		LEFT JOIN turns t ON t.match_id = m.id AND t.planet = m.planet AND t.team = m.team
		GROUP BY m.id, m.planet, m.team
		ORDER BY m.started_at DESC, m.id, m.planet, m.team`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var s MatchSummary
		var started string
		if err := rows.Scan(&s.ID, &s.Planet, &s.Team, &started, &s.Turns, &s.LastRound,
			&s.PeakUnits, &s.Karbonite, &s.Skipped, &s.EventCount); err != nil {
			return nil, err
		}
		s.StartedAt, _ = time.Parse(time.RFC3339, started)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Turns returns the recorded turns of one match, ordered by round.
func (ix *Index) Turns(ctx context.Context, match string) ([]Turn, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT raw_json FROM turns WHERE match_id = ? ORDER BY round, planet, team`, match)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Turn
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("turn row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
