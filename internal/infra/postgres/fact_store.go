package postgres

import (
	"context"
	"fmt"
	"time"

	"capital-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// FactStore persists answer events in Postgres.
type FactStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewFactStore(pool *pgxpool.Pool) *FactStore {
	return &FactStore{pool: pool, clock: time.Now}
}

func (s *FactStore) Append(ctx context.Context, event domain.AnswerEvent) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.clock()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (ts, user_id, ip, country, region, answer, correct) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ts.UTC(), event.UserID, event.SourceIP, event.Country, event.Region, event.Submitted, event.Credited)
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (s *FactStore) ScanAll(ctx context.Context) ([]domain.AnswerEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, user_id, ip, country, region, answer, correct FROM results`)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	defer rows.Close()

	var events []domain.AnswerEvent
	for rows.Next() {
		var ev domain.AnswerEvent
		if err := rows.Scan(&ev.Timestamp, &ev.UserID, &ev.SourceIP, &ev.Country, &ev.Region, &ev.Submitted, &ev.Credited); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return events, nil
}

func (s *FactStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM results WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete results for user: %w", err)
	}
	return nil
}

func (s *FactStore) CountRecent(ctx context.Context, window time.Duration) (domain.HealthMetrics, error) {
	cutoff := s.clock().Add(-window).UTC()
	var metrics domain.HealthMetrics
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*) FROM results WHERE ts >= $1`, cutoff).
		Scan(&metrics.DistinctUsers, &metrics.TotalEvents)
	if err != nil {
		return domain.HealthMetrics{}, fmt.Errorf("count recent results: %w", err)
	}
	return metrics, nil
}
