package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"capital-quiz-service/internal/app"
	"capital-quiz-service/internal/domain"
	"capital-quiz-service/internal/infra/memory"
)

func TestSubmitAnswerComparison(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	// Case, punctuation and whitespace are ignored on both sides.
	if !service.SubmitAnswer(ctx, "u1", "10.0.0.5", "myfakecountry", "myfakeregion", "abc", "A'B.C") {
		t.Fatalf("expected sanitized match to be credited")
	}
	if !service.SubmitAnswer(ctx, "u1", "10.0.0.5", "Shire", "Middle Earth", "  hobbiton ", "Hobbiton") {
		t.Fatalf("expected case/whitespace-insensitive match to be credited")
	}
	if service.SubmitAnswer(ctx, "u1", "10.0.0.5", "Shire", "Middle Earth", "bree", "Hobbiton") {
		t.Fatalf("expected wrong answer to not be credited")
	}
}

func TestSubmitAnswerTruncatesOversizedInput(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	// Input beyond 255 runes is truncated, not rejected.
	oversized := strings.Repeat("a", 255) + "zzz"
	if !service.SubmitAnswer(ctx, "u1", "10.0.0.5", "x", "y", oversized, strings.Repeat("a", 255)) {
		t.Fatalf("expected truncated input to match")
	}
}

func TestReportReferenceFixture(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	seedFixture(ctx, service)

	user1 := service.Report(ctx, "1")
	wantRows(t, user1, []domain.ReportRow{
		{Group: "Overall", Accuracy: 1.0, OutOf: 3, Place: 1},
		{Group: "Middle Earth", Accuracy: 1.0, OutOf: 2, Place: 1},
		{Group: "myfakeregion", Accuracy: 1.0, OutOf: 3, Place: 1},
	})

	user2 := service.Report(ctx, "2")
	wantRows(t, user2, []domain.ReportRow{
		{Group: "Overall", Accuracy: 0.5, OutOf: 3, Place: 2},
		{Group: "Middle Earth", Accuracy: 1.0, OutOf: 2, Place: 1},
		{Group: "myfakeregion", Accuracy: 0.0, OutOf: 3, Place: 2},
	})

	// User 3 never answered in Middle Earth: no row for it, and the Overall
	// place trails both other users.
	user3 := service.Report(ctx, "3")
	wantRows(t, user3, []domain.ReportRow{
		{Group: "Overall", Accuracy: 0.0, OutOf: 3, Place: 3},
		{Group: "myfakeregion", Accuracy: 0.0, OutOf: 3, Place: 2},
	})
}

func TestReportUnknownUserIsEmpty(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	seedFixture(ctx, service)

	if report := service.Report(ctx, "nobody"); len(report) != 0 {
		t.Fatalf("expected empty report for unknown user, got %+v", report)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	seedFixture(ctx, service)

	service.Reset(ctx, "1")
	if report := service.Report(ctx, "1"); len(report) != 0 {
		t.Fatalf("expected empty report after reset, got %+v", report)
	}

	// Resetting an already-empty user succeeds as a no-op.
	service.Reset(ctx, "1")
	if report := service.Report(ctx, "1"); len(report) != 0 {
		t.Fatalf("expected report to stay empty, got %+v", report)
	}

	// Other users keep their facts: user 2 is now ranked among 2 users.
	user2 := service.Report(ctx, "2")
	if len(user2) == 0 || user2[0].OutOf != 2 {
		t.Fatalf("expected user 2 ranked out of 2 after reset of user 1, got %+v", user2)
	}
}

func TestSubscribeReceivesReportUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	updates, cancel := service.Subscribe("1")
	defer cancel()

	if !service.SubmitAnswer(ctx, "1", "10.0.0.5", "myfakecountry", "myfakeregion", "fakecapital", "fakecapital") {
		t.Fatalf("expected correct answer")
	}

	select {
	case report := <-updates:
		if len(report) != 2 || report[0].Group != "Overall" || report[0].Accuracy != 1.0 {
			t.Fatalf("expected fresh report after submission, got %+v", report)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected report update after submission")
	}
}

func TestHealthMetricsWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := memory.NewFactStoreWithClock(func() time.Time { return now })
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCountries()), time.Minute)
	service := app.NewReportServiceWithClock(store, catalog, func() time.Time { return now })

	// One stale event outside the window, two fresh ones from distinct users.
	if err := store.Append(ctx, domain.AnswerEvent{Timestamp: now.Add(-48 * time.Hour), UserID: "old"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	service.SubmitAnswer(ctx, "1", "10.0.0.5", "myfakecountry", "myfakeregion", "fakecapital", "fakecapital")
	service.SubmitAnswer(ctx, "2", "10.0.0.10", "myfakecountry", "myfakeregion", "wrong", "fakecapital")

	metrics := service.HealthMetrics(ctx, 24*time.Hour)
	if metrics.DistinctUsers != 2 || metrics.TotalEvents != 2 {
		t.Fatalf("expected 2 users / 2 events in window, got %+v", metrics)
	}
}

func TestStoreFailureDegradesToEmptyResults(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCountries()), time.Minute)
	service := app.NewReportService(failingStore{}, catalog)

	// Grading still answers; only the fact is lost.
	if !service.SubmitAnswer(ctx, "u", "10.0.0.5", "myfakecountry", "myfakeregion", "fakecapital", "fakecapital") {
		t.Fatalf("expected correct verdict despite store failure")
	}
	if service.SubmitAnswer(ctx, "u", "10.0.0.5", "myfakecountry", "myfakeregion", "wrong", "fakecapital") {
		t.Fatalf("expected wrong verdict despite store failure")
	}

	// Reads degrade to "no stats available", never an error or a panic.
	if report := service.Report(ctx, "u"); len(report) != 0 {
		t.Fatalf("expected empty report while store is down, got %+v", report)
	}
	service.Reset(ctx, "u")
	if metrics := service.HealthMetrics(ctx, 24*time.Hour); metrics != (domain.HealthMetrics{}) {
		t.Fatalf("expected zero metrics while store is down, got %+v", metrics)
	}
}

var errStoreDown = errors.New("store down")

// failingStore simulates an unreachable fact store.
type failingStore struct{}

func (failingStore) Append(context.Context, domain.AnswerEvent) error {
	return errStoreDown
}

func (failingStore) ScanAll(context.Context) ([]domain.AnswerEvent, error) {
	return nil, errStoreDown
}

func (failingStore) DeleteAllForUser(context.Context, string) error {
	return errStoreDown
}

func (failingStore) CountRecent(context.Context, time.Duration) (domain.HealthMetrics, error) {
	return domain.HealthMetrics{}, errStoreDown
}

func seedFixture(ctx context.Context, service *app.ReportService) {
	service.SubmitAnswer(ctx, "1", "10.0.0.5", "myfakecountry", "myfakeregion", "fakecapital", "fakecapital")
	service.SubmitAnswer(ctx, "1", "10.0.0.5", "Shire", "Middle Earth", "Hobbiton", "Hobbiton")
	service.SubmitAnswer(ctx, "2", "10.0.0.10", "myfakecountry", "myfakeregion", "wrong", "fakecapital")
	service.SubmitAnswer(ctx, "2", "10.0.0.10", "Shire", "Middle Earth", "Hobbiton", "Hobbiton")
	service.SubmitAnswer(ctx, "3", "10.0.0.22", "myfakecountry", "myfakeregion", "wrong", "fakecapital")
}

func wantRows(t *testing.T, got, want []domain.ReportRow) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func newTestService() (*app.ReportService, *memory.FactStore) {
	store := memory.NewFactStore()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCountries()), time.Minute)
	return app.NewReportService(store, catalog), store
}

func testCountries() []domain.Country {
	return []domain.Country{
		{ID: "1", Name: "myfakecountry", Region: "myfakeregion", Capital: "fakecapital"},
		{ID: "2", Name: "Shire", Region: "Middle Earth", Capital: "Hobbiton"},
	}
}
