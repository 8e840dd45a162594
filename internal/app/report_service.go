package app

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"capital-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// FactStore abstracts the append-only answer log (in-memory, SQLite, Postgres).
type FactStore interface {
	Append(ctx context.Context, event domain.AnswerEvent) error
	ScanAll(ctx context.Context) ([]domain.AnswerEvent, error)
	DeleteAllForUser(ctx context.Context, userID string) error
	CountRecent(ctx context.Context, window time.Duration) (domain.HealthMetrics, error)
}

// CatalogRepository serves the reference country catalog (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// maxSubmissionRunes caps submitted answers; oversized input is truncated, not rejected.
const maxSubmissionRunes = 255

// ReportService contains the quiz scoring and analytics use cases. Store
// failures never escape it: they are logged and downgraded to empty results
// so the service keeps answering while the store is unavailable.
type ReportService struct {
	facts   FactStore
	catalog CatalogRepository
	clock   func() time.Time
	sf      singleflight.Group

	mu       sync.Mutex
	watchers map[string]map[chan []domain.ReportRow]struct{}
}

func NewReportService(facts FactStore, catalog CatalogRepository) *ReportService {
	return &ReportService{
		facts:    facts,
		catalog:  catalog,
		clock:    time.Now,
		watchers: make(map[string]map[chan []domain.ReportRow]struct{}),
	}
}

// NewReportServiceWithClock is test-only for deterministic timestamps.
func NewReportServiceWithClock(facts FactStore, catalog CatalogRepository, now func() time.Time) *ReportService {
	s := NewReportService(facts, catalog)
	s.clock = now
	return s
}

// RandomCountry picks a uniformly random country from the catalog.
func (s *ReportService) RandomCountry(ctx context.Context) (domain.Country, error) {
	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		return domain.Country{}, err
	}
	if catalog.Len() == 0 {
		return domain.Country{}, domain.ErrCatalogEmpty
	}
	return catalog.At(rand.Intn(catalog.Len())), nil
}

// CountryByID resolves a catalog id, typically round-tripped through a cookie.
func (s *ReportService) CountryByID(ctx context.Context, id string) (domain.Country, error) {
	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		return domain.Country{}, err
	}
	country, ok := catalog.ByID(id)
	if !ok {
		return domain.Country{}, domain.ErrCountryNotFound
	}
	return country, nil
}

// SubmitAnswer grades a guess against the expected capital and records the
// outcome as one immutable fact. The guess is credited iff both sides are
// equal after lowercasing and stripping every non-alphanumeric rune. A store
// failure loses the fact but never the grading: the verdict is still returned.
func (s *ReportService) SubmitAnswer(ctx context.Context, userID, ip, country, region, submitted, expected string) bool {
	submitted = truncate(submitted, maxSubmissionRunes)
	credited := sanitizeAnswer(submitted) == sanitizeAnswer(expected)

	event := domain.AnswerEvent{
		Timestamp: s.clock(),
		UserID:    userID,
		SourceIP:  ip,
		Country:   country,
		Region:    region,
		Submitted: submitted,
		Credited:  credited,
	}
	if err := s.facts.Append(ctx, event); err != nil {
		log.Printf("append answer event for user %s: %v", userID, err)
	}
	s.notify(ctx, userID)
	return credited
}

// Report computes the user's performance report: accuracy and competition
// rank for the Overall group first, then for each region the user has
// answered in, ascending by region name. A user with no facts gets an empty
// report; so does any caller while the store is unreachable.
func (s *ReportService) Report(ctx context.Context, userID string) []domain.ReportRow {
	groups, err := s.aggregateAll(ctx)
	if err != nil {
		log.Printf("aggregate results: %v", err)
		return nil
	}

	rows := make([]domain.ReportRow, 0, len(groups))
	for name, group := range groups {
		ranked := rankGroup(group.accuracies)
		row, ok := ranked[userID]
		if !ok {
			continue
		}
		rows = append(rows, domain.ReportRow{
			Group:    name,
			Accuracy: row.accuracy,
			OutOf:    row.outOf,
			Place:    row.place,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		pi, pj := groups[rows[i].Group].priority, groups[rows[j].Group].priority
		if pi != pj {
			return pi > pj
		}
		return rows[i].Group < rows[j].Group
	})
	return rows
}

// aggregateAll scans the whole fact log and builds the cross-user accuracy
// table. Concurrent report requests collapse onto a single scan.
func (s *ReportService) aggregateAll(ctx context.Context) (map[string]accuracyGroup, error) {
	result, err, _ := s.sf.Do("aggregate", func() (interface{}, error) {
		events, err := s.facts.ScanAll(ctx)
		if err != nil {
			return nil, err
		}
		return aggregate(events), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]accuracyGroup), nil
}

// Reset removes every fact for the user. Resetting a user with no facts is a
// no-op; failures are logged and swallowed.
func (s *ReportService) Reset(ctx context.Context, userID string) {
	if err := s.facts.DeleteAllForUser(ctx, userID); err != nil {
		log.Printf("reset results for user %s: %v", userID, err)
	}
	s.notify(ctx, userID)
}

// HealthMetrics reports recent answer activity within the window, degrading
// to zero counts when the store is unreachable.
func (s *ReportService) HealthMetrics(ctx context.Context, window time.Duration) domain.HealthMetrics {
	metrics, err := s.facts.CountRecent(ctx, window)
	if err != nil {
		log.Printf("count recent events: %v", err)
		return domain.HealthMetrics{}
	}
	return metrics
}

// Subscribe returns a channel that receives the user's fresh report after
// each of their submissions or resets. The caller must invoke the returned
// cancel function to avoid leaks.
func (s *ReportService) Subscribe(userID string) (<-chan []domain.ReportRow, func()) {
	ch := make(chan []domain.ReportRow, 8)

	s.mu.Lock()
	set, ok := s.watchers[userID]
	if !ok {
		set = make(map[chan []domain.ReportRow]struct{})
		s.watchers[userID] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if set, ok := s.watchers[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(s.watchers, userID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// notify pushes a fresh report to the user's subscribers. Slow receivers get
// stale snapshots dropped rather than blocking the submitter.
func (s *ReportService) notify(ctx context.Context, userID string) {
	s.mu.Lock()
	if len(s.watchers[userID]) == 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	report := s.Report(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[userID] {
		select {
		case ch <- report:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- report
		}
	}
}

// sanitizeAnswer normalizes a capital-city string for comparison: lowercase,
// keep only letters and digits. "A'B.C" sanitizes to "abc".
func sanitizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
