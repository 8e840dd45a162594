package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"capital-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

func TestWebSocketReportStream(t *testing.T) {
	service := newTestService()
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot: no facts yet, empty report.
	initial := readReport(conn, t)
	if len(initial) != 0 {
		t.Fatalf("expected empty initial report, got %+v", initial)
	}

	if !service.SubmitAnswer(context.Background(), "u1", "10.0.0.5", "myfakecountry", "myfakeregion", "fakecapital", "fakecapital") {
		t.Fatalf("expected correct answer")
	}

	update := readReport(conn, t)
	if len(update) != 2 || update[0].Group != "Overall" || update[0].Accuracy != 1.0 {
		t.Fatalf("expected fresh report pushed after submission, got %+v", update)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	wsHandler := NewWSHandler(newTestService())

	rec := httptest.NewRecorder()
	wsHandler.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a user id, got %d", rec.Code)
	}
}

func readReport(conn *websocket.Conn, t *testing.T) []domain.ReportRow {
	t.Helper()
	var msg struct {
		Type    string             `json:"type"`
		Payload []domain.ReportRow `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "report" {
		t.Fatalf("expected report message, got %s", msg.Type)
	}
	return msg.Payload
}
