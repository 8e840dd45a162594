package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"capital-quiz-service/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// FactStore persists answer events in a local SQLite file. A single open
// connection plus busy_timeout keeps writes serialized without corrupting
// the log under concurrent requests.
type FactStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewFactStore(path string) (*FactStore, error) {
	if path == "" {
		path = "quiz.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &FactStore{db: db, clock: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *FactStore) Close() error {
	return s.db.Close()
}

func (s *FactStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			ip TEXT NOT NULL,
			country TEXT NOT NULL,
			region TEXT NOT NULL,
			answer TEXT NOT NULL,
			correct INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_user_id ON results(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_results_ts ON results(ts);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *FactStore) Append(ctx context.Context, event domain.AnswerEvent) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (ts, user_id, ip, country, region, answer, correct) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().UnixNano(), event.UserID, event.SourceIP, event.Country, event.Region, event.Submitted, boolToInt(event.Credited))
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (s *FactStore) ScanAll(ctx context.Context) ([]domain.AnswerEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, user_id, ip, country, region, answer, correct FROM results`)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	defer rows.Close()

	var events []domain.AnswerEvent
	for rows.Next() {
		var ts int64
		var correct int
		var ev domain.AnswerEvent
		if err := rows.Scan(&ts, &ev.UserID, &ev.SourceIP, &ev.Country, &ev.Region, &ev.Submitted, &correct); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.Credited = correct != 0
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return events, nil
}

func (s *FactStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete results for user: %w", err)
	}
	return nil
}

func (s *FactStore) CountRecent(ctx context.Context, window time.Duration) (domain.HealthMetrics, error) {
	cutoff := s.clock().Add(-window).UTC().UnixNano()
	var metrics domain.HealthMetrics
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*) FROM results WHERE ts >= ?`, cutoff).
		Scan(&metrics.DistinctUsers, &metrics.TotalEvents)
	if err != nil {
		return domain.HealthMetrics{}, fmt.Errorf("count recent results: %w", err)
	}
	return metrics, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
