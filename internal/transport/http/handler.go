package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"capital-quiz-service/internal/app"
	"capital-quiz-service/internal/domain"
	"github.com/google/uuid"
)

const (
	userCookie    = "quiz_user"
	countryCookie = "quiz_country"
)

var questionTmpl = template.Must(template.New("question").Parse(`<h3>What is the capital of {{.Name}}?</h3>
<form action="/guess" method="POST">
    <input name="user_input" autofocus>
    <input type="submit" value="Submit!">
</form>
<p><a href="/stats">My stats</a></p>
`))

var verdictTmpl = template.Must(template.New("verdict").Parse(`{{if .Credited}}<p>{{.Capital}} is correct!</p>{{else}}<p>Incorrect! The correct answer was {{.Capital}}</p>{{end}}
<form action="/">
    <button type="submit">Try again?</button>
</form>
<p><a href="/stats">My stats</a></p>
`))

// Handler wires the quiz HTTP surface into the report service.
type Handler struct {
	service       *app.ReportService
	metricsWindow time.Duration
}

func NewHandler(service *app.ReportService, metricsWindow time.Duration) *Handler {
	if metricsWindow <= 0 {
		metricsWindow = 24 * time.Hour
	}
	return &Handler{service: service, metricsWindow: metricsWindow}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.Question)
	mux.HandleFunc("/guess", h.Guess)
	mux.HandleFunc("/stats", h.Stats)
	mux.HandleFunc("/reset", h.Reset)
	mux.HandleFunc("/healthz", h.Health)
}

// Question serves the quiz form for a random country and remembers which
// country was asked in a cookie.
func (h *Handler) Question(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.sessionUser(w, r)

	country, err := h.service.RandomCountry(r.Context())
	if err != nil {
		log.Printf("pick country: %v", err)
		http.Error(w, "no country data available", http.StatusServiceUnavailable)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: countryCookie, Value: country.ID, Path: "/", HttpOnly: true})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := questionTmpl.Execute(w, country); err != nil {
		log.Printf("render question: %v", err)
	}
}

// Guess grades the submitted answer against the pending country's capital.
func (h *Handler) Guess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	userID := h.sessionUser(w, r)

	pending, err := r.Cookie(countryCookie)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	country, err := h.service.CountryByID(r.Context(), pending.Value)
	if err != nil {
		if errors.Is(err, domain.ErrCountryNotFound) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		log.Printf("resolve country: %v", err)
		http.Error(w, "no country data available", http.StatusServiceUnavailable)
		return
	}

	submitted := r.FormValue("user_input")
	credited := h.service.SubmitAnswer(r.Context(), userID, clientIP(r), country.Name, country.Region, submitted, country.Capital)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = verdictTmpl.Execute(w, struct {
		Capital  string
		Credited bool
	}{Capital: country.Capital, Credited: credited})
	if err != nil {
		log.Printf("render verdict: %v", err)
	}
}

// Stats returns the caller's report as JSON, Overall first.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionUser(w, r)
	report := h.service.Report(r.Context(), userID)
	if report == nil {
		report = []domain.ReportRow{}
	}
	writeJSON(w, report)
}

// Reset deletes every recorded answer for the caller.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := h.sessionUser(w, r)
	h.service.Reset(r.Context(), userID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Health reports recent answer activity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.service.HealthMetrics(r.Context(), h.metricsWindow))
}

// sessionUser returns the caller's opaque user id, issuing a fresh one via
// cookie when absent. Session handling is deliberately this thin: no auth.
func (h *Handler) sessionUser(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(userCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{Name: userCookie, Value: id, Path: "/", HttpOnly: true})
	return id
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json response: %v", err)
	}
}
