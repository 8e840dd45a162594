package app

import (
	"testing"

	"capital-quiz-service/internal/domain"
)

func TestAggregateBuildsOverallAndRegionGroups(t *testing.T) {
	events := []domain.AnswerEvent{
		{UserID: "1", Region: "myfakeregion", Credited: true},
		{UserID: "1", Region: "Middle Earth", Credited: true},
		{UserID: "2", Region: "myfakeregion", Credited: false},
		{UserID: "2", Region: "Middle Earth", Credited: true},
		{UserID: "3", Region: "myfakeregion", Credited: false},
	}

	groups := aggregate(events)
	if len(groups) != 3 {
		t.Fatalf("expected Overall plus 2 regions, got %d groups", len(groups))
	}

	overall, ok := groups[domain.OverallGroup]
	if !ok {
		t.Fatalf("expected Overall group")
	}
	if overall.priority <= groups["myfakeregion"].priority {
		t.Fatalf("expected Overall to outrank regions in ordering priority")
	}
	if got := overall.accuracies["1"]; got != 1.0 {
		t.Fatalf("expected user 1 overall accuracy 1.0, got %v", got)
	}
	if got := overall.accuracies["2"]; got != 0.5 {
		t.Fatalf("expected user 2 overall accuracy 0.5, got %v", got)
	}
	if got := overall.accuracies["3"]; got != 0.0 {
		t.Fatalf("expected user 3 overall accuracy 0.0, got %v", got)
	}

	middleEarth := groups["Middle Earth"]
	if len(middleEarth.accuracies) != 2 {
		t.Fatalf("expected 2 users in Middle Earth, got %d", len(middleEarth.accuracies))
	}
	if _, ok := middleEarth.accuracies["3"]; ok {
		t.Fatalf("user 3 never answered in Middle Earth yet appears in the group")
	}
}

func TestAggregateEmptyLog(t *testing.T) {
	if groups := aggregate(nil); len(groups) != 0 {
		t.Fatalf("expected no groups for an empty log, got %d", len(groups))
	}
}
