package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/classpulse/poll-service/internal/domain"
	"github.com/classpulse/poll-service/internal/service"
	"github.com/classpulse/poll-service/internal/transport/ws"
)

func newTestRouterWithHistory(history HistoryLister) http.Handler {
	hub := ws.NewHub()
	polls := service.NewPollService(60, 600)
	registry := service.NewRegistryService()
	feed := service.NewFeedService(100)
	wsServer := ws.NewServer(hub, polls, registry, feed, 500, 1)
	handler := NewHandler(polls, registry, feed, hub, history, 500, 1)
	return NewRouter(handler, wsServer)
}

func newTestRouter() http.Handler {
	return newTestRouterWithHistory(nil)
}

type fakeHistory struct {
	items []domain.PollSummary
}

func (f *fakeHistory) ListSummaries(ctx context.Context, limit int) ([]domain.PollSummary, error) {
	return f.items, nil
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, teacher bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if teacher {
		req.Header.Set("X-Role", "teacher")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreatePollREST(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, "POST", "/poll", CreatePollRequest{
		Question: "2+2?",
		Options:  []string{"3", "4"},
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp PollResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// create-poll implies start
	if resp.Poll.Status != domain.StatusActive {
		t.Errorf("poll status = %s, want active", resp.Poll.Status)
	}
	if resp.Stats.QuestionsAsked != 1 {
		t.Errorf("questions asked = %d, want 1", resp.Stats.QuestionsAsked)
	}
}

func TestCreatePollRequiresTeacherRole(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, "POST", "/poll", CreatePollRequest{
		Question: "q?",
		Options:  []string{"a", "b"},
	}, false)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCreatePollValidationREST(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name string
		req  CreatePollRequest
		want int
	}{
		{"empty question", CreatePollRequest{Options: []string{"a", "b"}}, http.StatusBadRequest},
		{"one option", CreatePollRequest{Question: "q?", Options: []string{"a"}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/poll", tt.req, true)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestGetPollBeforeCreate(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, "GET", "/poll", nil, false)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestJoinAndSubmitREST(t *testing.T) {
	router := newTestRouter()

	if w := doJSON(t, router, "POST", "/poll", CreatePollRequest{
		Question: "2+2?",
		Options:  []string{"3", "4"},
	}, true); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w := doJSON(t, router, "POST", "/participants", JoinRequest{Name: "Alice"}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("join status = %d: %s", w.Code, w.Body.String())
	}
	var joined JoinResponse
	if err := json.Unmarshal(w.Body.Bytes(), &joined); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if joined.Stats.RosterSize != 1 {
		t.Errorf("roster size = %d, want 1", joined.Stats.RosterSize)
	}

	// duplicate name
	if w := doJSON(t, router, "POST", "/participants", JoinRequest{Name: "Alice"}, false); w.Code != http.StatusConflict {
		t.Errorf("duplicate join status = %d, want 409", w.Code)
	}

	idx := 1
	w = doJSON(t, router, "POST", "/poll/responses", SubmitResponseRequest{
		ParticipantID: joined.Participant.ID,
		OptionIndex:   &idx,
	}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body.String())
	}
	var res ResultsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if res.Results.Counts[1] != 1 {
		t.Errorf("counts = %v, want [0 1]", res.Results.Counts)
	}
	// Alice was the whole roster, so the poll auto-ended
	if res.Stats.Status != domain.StatusEnded {
		t.Errorf("status after full roster = %s, want ended", res.Stats.Status)
	}

	// a second submission conflicts (poll no longer active)
	if w := doJSON(t, router, "POST", "/poll/responses", SubmitResponseRequest{
		ParticipantID: joined.Participant.ID,
		OptionIndex:   &idx,
	}, false); w.Code != http.StatusConflict {
		t.Errorf("late submit status = %d, want 409", w.Code)
	}
}

func TestSubmitUnknownParticipantREST(t *testing.T) {
	router := newTestRouter()

	if w := doJSON(t, router, "POST", "/poll", CreatePollRequest{
		Question: "q?",
		Options:  []string{"a", "b"},
	}, true); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	idx := 0
	w := doJSON(t, router, "POST", "/poll/responses", SubmitResponseRequest{
		ParticipantID: "ghost",
		OptionIndex:   &idx,
	}, false)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestKickREST(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, "POST", "/participants", JoinRequest{Name: "Bob"}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("join: %d", w.Code)
	}
	var joined JoinResponse
	if err := json.Unmarshal(w.Body.Bytes(), &joined); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := doJSON(t, router, "DELETE", "/participants/"+joined.Participant.ID, nil, false); w.Code != http.StatusForbidden {
		t.Errorf("kick without role status = %d, want 403", w.Code)
	}
	if w := doJSON(t, router, "DELETE", "/participants/"+joined.Participant.ID, nil, true); w.Code != http.StatusOK {
		t.Errorf("kick status = %d, want 200", w.Code)
	}
	// already removed
	if w := doJSON(t, router, "DELETE", "/participants/"+joined.Participant.ID, nil, true); w.Code != http.StatusNotFound {
		t.Errorf("second kick status = %d, want 404", w.Code)
	}

	// the freed name can be claimed again
	if w := doJSON(t, router, "POST", "/participants", JoinRequest{Name: "Bob"}, false); w.Code != http.StatusCreated {
		t.Errorf("rejoin after kick status = %d, want 201", w.Code)
	}
}

func TestPollHistoryREST(t *testing.T) {
	history := &fakeHistory{items: []domain.PollSummary{{
		PollID:       "p-1",
		Question:     "2+2?",
		Options:      []string{"3", "4"},
		Counts:       []int{0, 3},
		Participants: 3,
		CompletedAt:  time.Now(),
	}}}
	router := newTestRouterWithHistory(history)

	if w := doJSON(t, router, "GET", "/poll/history", nil, false); w.Code != http.StatusForbidden {
		t.Errorf("history without role status = %d, want 403", w.Code)
	}

	w := doJSON(t, router, "GET", "/poll/history", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d: %s", w.Code, w.Body.String())
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Question != "2+2?" {
		t.Errorf("history items = %+v", resp.Items)
	}
}

func TestPollHistoryDisabled(t *testing.T) {
	router := newTestRouter()

	if w := doJSON(t, router, "GET", "/poll/history", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("disabled history status = %d, want 404", w.Code)
	}
}

func TestChatREST(t *testing.T) {
	router := newTestRouter()

	if w := doJSON(t, router, "POST", "/chat", PostChatRequest{Message: "hello"}, true); w.Code != http.StatusCreated {
		t.Fatalf("post chat: %d", w.Code)
	}
	if w := doJSON(t, router, "POST", "/chat", PostChatRequest{Message: "   "}, true); w.Code != http.StatusBadRequest {
		t.Errorf("empty chat status = %d, want 400", w.Code)
	}

	w := doJSON(t, router, "GET", "/chat", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("get chat: %d", w.Code)
	}
	var hist ChatHistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Items) != 1 || hist.Items[0].Text != "hello" {
		t.Errorf("history = %+v", hist.Items)
	}

	// the cap is 500 characters, not bytes
	if w := doJSON(t, router, "POST", "/chat", PostChatRequest{Message: strings.Repeat("ä", 500)}, true); w.Code != http.StatusCreated {
		t.Errorf("500-char multibyte chat status = %d, want 201", w.Code)
	}
	if w := doJSON(t, router, "POST", "/chat", PostChatRequest{Message: strings.Repeat("ä", 501)}, true); w.Code != http.StatusBadRequest {
		t.Errorf("501-char multibyte chat status = %d, want 400", w.Code)
	}

	if w := doJSON(t, router, "DELETE", "/chat", nil, true); w.Code != http.StatusOK {
		t.Fatalf("clear chat: %d", w.Code)
	}
	w = doJSON(t, router, "GET", "/chat", nil, false)
	hist = ChatHistoryResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Items) != 0 {
		t.Errorf("history after clear = %d items, want 0", len(hist.Items))
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, "GET", "/healthz", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
}
