package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/developer-meett/Know-map/internal/api"
	"github.com/developer-meett/Know-map/internal/quiz"
	"github.com/developer-meett/Know-map/internal/report"
	"github.com/developer-meett/Know-map/internal/submission"
)

const secret = "test-secret"

type fixture struct {
	handler  http.Handler
	verifier *api.Verifier
	hub      *api.Hub
	quizzes  *quiz.MemoryStore
	reports  *report.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	quizzes := quiz.NewMemoryStore(
		quiz.Quiz{
			ID:    "geo-1",
			Title: "Capitals",
			Questions: []quiz.Record{
				{"id": "q1", "question": "Capital of France?", "options": []any{"Paris", "Rome"}, "correctAnswer": 0, "topic": "Europe"},
				{"id": "q2", "question": "Capital of Japan?", "options": []any{"Osaka", "Tokyo"}, "correctAnswer": 1, "topic": "Asia"},
			},
		},
		quiz.Quiz{ID: "empty", Title: "Nothing"},
	)
	reports := report.NewMemoryStore()
	hub := api.NewHub(slog.Default())
	engine := submission.NewEngine(submission.EngineConfig{
		Questions: quizzes,
		Reports:   reports,
		Notifier:  hub,
	})
	validator, err := quiz.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	verifier := api.NewVerifier(secret, "admin")

	h, err := api.NewHandler(api.Config{
		Grader:    engine,
		Quizzes:   quizzes,
		Reports:   reports,
		Validator: validator,
		Auth:      verifier,
		Hub:       hub,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return &fixture{handler: h.Routes(), verifier: verifier, hub: hub, quizzes: quizzes, reports: reports}
}

func (f *fixture) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	tok, err := f.verifier.Issue(userID, admin, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	if _, err := api.NewHandler(api.Config{}); err == nil {
		t.Error("NewHandler() with no dependencies should fail")
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["message"]; got != "Know-Map API is running" {
		t.Errorf("message = %v", got)
	}
}

func TestSubmitQuiz(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "learner-1", false)

	rec := f.do(t, http.MethodPost, "/submitQuiz", tok, map[string]any{
		"quizId":     "geo-1",
		"answers":    map[string]any{"0": 0, "q2": "1"},
		"timeSpent":  90,
		"deviceType": "desktop",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if body["success"] != true || body["message"] != "Quiz submitted and analyzed successfully" {
		t.Errorf("body = %v", body)
	}
	if body["reportId"] == "" || body["reportId"] == nil {
		t.Error("reportId missing")
	}
	analysis := body["analysis"].(map[string]any)
	if analysis["totalScore"] != float64(2) || analysis["overallPercentage"] != float64(100) {
		t.Errorf("analysis = %v, want 2/2", analysis)
	}
	contribution := body["contribution"].(map[string]any)
	if contribution["xpEarned"] != float64(64) {
		t.Errorf("xpEarned = %v, want 64", contribution["xpEarned"])
	}
	stats := body["stats"].(map[string]any)
	if stats["totalQuizzesTaken"] != float64(1) || stats["totalTimeSpent"] != 1.5 {
		t.Errorf("stats = %v", stats)
	}
	if badges, ok := body["badgesUnlocked"].([]any); !ok || len(badges) != 0 {
		t.Errorf("badgesUnlocked = %v, want []", body["badgesUnlocked"])
	}
}

func TestSubmitQuiz_Errors(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "learner-1", false)

	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
		wantError  string
	}{
		{"no token", "", map[string]any{"quizId": "geo-1", "answers": map[string]any{}}, http.StatusUnauthorized, ""},
		{"bad token", "not-a-jwt", map[string]any{"quizId": "geo-1", "answers": map[string]any{}}, http.StatusUnauthorized, ""},
		{"malformed body", tok, "{", http.StatusBadRequest, "invalid request body"},
		{"missing quiz id", tok, map[string]any{"answers": map[string]any{}}, http.StatusBadRequest, "quizId is required"},
		{"missing answers", tok, map[string]any{"quizId": "geo-1"}, http.StatusBadRequest, "answers are required"},
		{"unknown quiz", tok, map[string]any{"quizId": "nope", "answers": map[string]any{}}, http.StatusNotFound, "Quiz not found"},
		{"quiz without questions", tok, map[string]any{"quizId": "empty", "answers": map[string]any{}}, http.StatusBadRequest, "No questions found in quiz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/submitQuiz", tt.token, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				if got := decode(t, rec)["error"]; got != tt.wantError {
					t.Errorf("error = %v, want %q", got, tt.wantError)
				}
			}
		})
	}
}

func TestSubmitQuiz_RejectsOtherSigningKey(t *testing.T) {
	f := newFixture(t)
	forged, err := api.NewVerifier("other-secret", "admin").Issue("learner-1", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rec := f.do(t, http.MethodPost, "/submitQuiz", forged, map[string]any{"quizId": "geo-1", "answers": map[string]any{}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "learner-1", false)

	rec := f.do(t, http.MethodGet, "/stats", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["level"]; got != float64(1) {
		t.Errorf("fresh level = %v, want 1", got)
	}

	f.do(t, http.MethodPost, "/submitQuiz", tok, map[string]any{"quizId": "geo-1", "answers": map[string]any{"0": 1, "1": 1}})

	stats := decode(t, f.do(t, http.MethodGet, "/stats", tok, nil))
	if stats["totalXP"] != float64(12) || stats["averageScore"] != float64(50) {
		t.Errorf("stats = %v, want XP 12 average 50", stats)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "learner-1", false)
	stranger := f.token(t, "learner-2", false)

	rec := f.do(t, http.MethodPost, "/submitQuiz", owner, map[string]any{"quizId": "geo-1", "answers": map[string]any{"0": 0}})
	reportID, _ := decode(t, rec)["reportId"].(string)
	if reportID == "" {
		t.Fatal("no report id returned")
	}

	t.Run("list", func(t *testing.T) {
		list := decode(t, f.do(t, http.MethodGet, "/reports", owner, nil))["reports"].([]any)
		if len(list) != 1 {
			t.Fatalf("reports = %d, want 1", len(list))
		}
		empty := decode(t, f.do(t, http.MethodGet, "/reports", stranger, nil))["reports"].([]any)
		if len(empty) != 0 {
			t.Errorf("stranger sees %d reports", len(empty))
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		if rec := f.do(t, http.MethodGet, "/reports?limit=zero", owner, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("get own report", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/reports/"+reportID, owner, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decode(t, rec)
		if body["quizTitle"] != "Capitals" || body["reportVersion"] != report.Version {
			t.Errorf("report = %v", body)
		}
	})

	t.Run("other learner's report is hidden", func(t *testing.T) {
		if rec := f.do(t, http.MethodGet, "/reports/"+reportID, stranger, nil); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unknown report", func(t *testing.T) {
		if rec := f.do(t, http.MethodGet, "/reports/does-not-exist", owner, nil); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("export", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/reports/"+reportID+"/export", owner, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
			t.Errorf("Content-Type = %q", ct)
		}
		// xlsx files are zip archives.
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
			t.Error("export body is not a zip archive")
		}
	})
}

func TestImportQuiz(t *testing.T) {
	f := newFixture(t)
	doc := `{
  "id": "math-1",
  "title": "Arithmetic",
  "questions": [
    {"id": "a1", "question": "2+2?", "options": ["3", "4"], "correctAnswer": 1, "topic": "Addition"}
  ]
}`

	t.Run("requires admin", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/quizzes", f.token(t, "learner-1", false), doc)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		bad := `{"id": "math-2", "questions": [{"question": "2+2?", "options": ["3", "4"], "correctAnswer": 7}]}`
		rec := f.do(t, http.MethodPost, "/quizzes", f.token(t, "instructor", true), bad)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
		}
		if problems, _ := decode(t, rec)["problems"].([]any); len(problems) == 0 {
			t.Error("expected validation problems")
		}
	})

	t.Run("imports and grades", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/quizzes", f.token(t, "instructor", true), doc)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		stored, err := f.quizzes.GetQuiz(context.Background(), "math-1")
		if err != nil || stored.Title != "Arithmetic" {
			t.Fatalf("GetQuiz() = %+v, %v", stored, err)
		}

		sub := f.do(t, http.MethodPost, "/submitQuiz", f.token(t, "learner-1", false), map[string]any{
			"quizId": "math-1", "answers": map[string]any{"a1": 1},
		})
		if sub.Code != http.StatusOK {
			t.Fatalf("submit status = %d", sub.Code)
		}
	})
}

func TestVerifier(t *testing.T) {
	v := api.NewVerifier(secret, "admin")

	tok, err := v.Issue("instructor-9", true, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "instructor-9" || !id.Admin {
		t.Errorf("identity = %+v", id)
	}

	expired, err := v.Issue("instructor-9", false, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(expired); err == nil {
		t.Error("Verify() accepted an expired token")
	}
}

func TestProgressStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	tok := f.token(t, "learner-1", false)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress?token=" + tok
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	var snapshot api.ProgressEvent
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != "snapshot" || snapshot.Stats.Level != 1 {
		t.Errorf("snapshot = %+v", snapshot)
	}

	rec := f.do(t, http.MethodPost, "/submitQuiz", tok, map[string]any{"quizId": "geo-1", "answers": map[string]any{"0": 0, "1": 1}})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	var update api.ProgressEvent
	if err := wsjson.Read(ctx, conn, &update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != "attempt" || update.QuizID != "geo-1" || update.Stats.TotalXP != 64 {
		t.Errorf("update = %+v", update)
	}
	if update.Contribution == nil || !update.Contribution.IsPerfectScore {
		t.Errorf("contribution = %+v", update.Contribution)
	}

	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil && !errors.Is(err, context.Canceled) {
		t.Logf("close: %v", err)
	}
}

func TestProgressStream_RequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/ws/progress", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHub_DropsEventsForSlowSubscribers(t *testing.T) {
	hub := api.NewHub(slog.Default())
	events, unsubscribe := hub.Subscribe("u1")

	for range 20 {
		hub.Notify("u1", submission.Outcome{QuizID: "q"})
	}
	if got := len(events); got != cap(events) {
		t.Errorf("buffered = %d, want %d", got, cap(events))
	}

	unsubscribe()
	unsubscribe()
	if n := hub.Subscribers("u1"); n != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe, want 0", n)
	}
}
