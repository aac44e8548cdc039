package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/classpulse/poll-service/internal/domain"
	"github.com/classpulse/poll-service/internal/service"
	"github.com/classpulse/poll-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
)

// HistoryLister reads back finalized poll summaries. Nil when persistence is
// disabled.
type HistoryLister interface {
	ListSummaries(ctx context.Context, limit int) ([]domain.PollSummary, error)
}

// Handler mirrors every realtime mutation over REST. Both entry points call
// the same services; the state machine stays the single source of truth, and
// REST mutations fan out through the same hub.
type Handler struct {
	polls    *service.PollService
	registry *service.RegistryService
	feed     *service.FeedService
	hub      *ws.Hub
	history  HistoryLister

	maxMessageLen     int
	systemCooldownSec int
}

func NewHandler(polls *service.PollService, registry *service.RegistryService, feed *service.FeedService, hub *ws.Hub, history HistoryLister, maxMessageLen, systemCooldownSec int) *Handler {
	if maxMessageLen <= 0 {
		maxMessageLen = 500
	}
	return &Handler{
		polls:             polls,
		registry:          registry,
		feed:              feed,
		hub:               hub,
		history:           history,
		maxMessageLen:     maxMessageLen,
		systemCooldownSec: systemCooldownSec,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrTooFewOptions),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrEmptyName):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNoPoll), errors.Is(err, domain.ErrUnknownParticipant):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNameTaken),
		errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrPollNotWaiting),
		errors.Is(err, domain.ErrPollNotActive),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrOptionOutOfRange):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler: internal error", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (h *Handler) stats() domain.Stats {
	st := h.polls.Stats()
	st.Participants = h.registry.CountConnected()
	return st
}

// POST /poll
func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	poll, err := h.polls.Create(req.Question, req.Options, req.TimeLimitSec)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// connected students carry over into the fresh roster
	for _, p := range h.registry.ListConnected() {
		if p.Role == domain.RoleStudent {
			_ = h.polls.JoinRoster(p.ID)
		}
	}
	h.hub.Broadcast(ws.Message{Type: ws.TypePollCreated, Payload: ws.PollEventPayload{Poll: poll, Stats: h.stats()}})

	if err := h.polls.Start(); err != nil {
		slog.Warn("handler.CreatePoll: auto start failed", slog.Any("err", err))
	} else if started, ok := h.polls.Snapshot(); ok {
		poll = started
		h.hub.Broadcast(ws.Message{Type: ws.TypePollStarted, Payload: ws.PollEventPayload{Poll: poll, Stats: h.stats()}})
	}

	writeJSON(w, http.StatusCreated, PollResponse{Poll: poll, Stats: h.stats()})
}

// POST /poll/start
func (h *Handler) StartPoll(w http.ResponseWriter, r *http.Request) {
	if err := h.polls.Start(); err != nil {
		h.writeError(w, err)
		return
	}
	poll, _ := h.polls.Snapshot()
	h.hub.Broadcast(ws.Message{Type: ws.TypePollStarted, Payload: ws.PollEventPayload{Poll: poll, Stats: h.stats()}})

	writeJSON(w, http.StatusOK, PollResponse{Poll: poll, Stats: h.stats()})
}

// POST /poll/end
func (h *Handler) EndPoll(w http.ResponseWriter, r *http.Request) {
	if err := h.polls.End(); err != nil {
		h.writeError(w, err)
		return
	}
	// the finalize hook broadcasts poll-ended
	writeJSON(w, http.StatusOK, ResultsResponse{Results: h.polls.Results(), Stats: h.stats()})
}

// GET /poll
func (h *Handler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.polls.Snapshot()
	if !ok {
		h.writeError(w, domain.ErrNoPoll)
		return
	}
	writeJSON(w, http.StatusOK, PollResponse{Poll: poll, Stats: h.stats()})
}

// GET /poll/results
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ResultsResponse{Results: h.polls.Results(), Stats: h.stats()})
}

// POST /participants
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.writeError(w, domain.ErrEmptyName)
		return
	}

	// REST joins have no live connection; the conn id slot carries a
	// synthetic id so the registry invariant (one record per conn) holds
	participant, err := h.registry.Add("rest-"+name, name, domain.RoleStudent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.polls.JoinRoster(participant.ID); err != nil && !errors.Is(err, domain.ErrNoPoll) {
		slog.Warn("handler.Join: roster add failed", slog.Any("err", err))
	}

	notice := h.feed.PostSystem(name + " joined")
	h.hub.Broadcast(ws.Message{Type: ws.TypeParticipantJoined, Payload: ws.ParticipantEventPayload{
		ParticipantID: participant.ID,
		Name:          participant.Name,
		Stats:         h.stats(),
	}})
	h.hub.Broadcast(ws.Message{Type: ws.TypeChatMessage, Payload: ws.ChatEventPayload{Message: notice}})

	writeJSON(w, http.StatusCreated, JoinResponse{Participant: *participant, Stats: h.stats()})
}

// GET /participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ParticipantsResponse{Items: h.registry.ListConnected()})
}

// DELETE /participants/{id}
func (h *Handler) Kick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	victim, ok := h.registry.ByID(id)
	if !ok {
		h.writeError(w, domain.ErrUnknownParticipant)
		return
	}

	h.registry.Remove(victim.ID)
	h.polls.RemoveParticipant(victim.ID)
	notice := h.feed.PostSystem(victim.Name + " was removed from the session")

	// targeted notice before the removal broadcast, then the forced close
	h.hub.Send(victim.ConnID, ws.Message{Type: ws.TypeKicked, Payload: ws.ParticipantEventPayload{
		ParticipantID: victim.ID,
		Name:          victim.Name,
		Stats:         h.stats(),
	}})
	h.hub.Broadcast(ws.Message{Type: ws.TypeParticipantKicked, Payload: ws.ParticipantEventPayload{
		ParticipantID: victim.ID,
		Name:          victim.Name,
		Stats:         h.stats(),
	}})
	h.hub.Broadcast(ws.Message{Type: ws.TypeChatMessage, Payload: ws.ChatEventPayload{Message: notice}})
	h.hub.CloseConn(victim.ConnID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// POST /poll/responses
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req SubmitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if req.OptionIndex == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "option_index is required"})
		return
	}
	if _, ok := h.registry.ByID(req.ParticipantID); !ok {
		h.writeError(w, domain.ErrUnknownParticipant)
		return
	}

	sum, err := h.polls.SubmitResponse(req.ParticipantID, *req.OptionIndex)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results := h.polls.Results()
	h.hub.Broadcast(ws.Message{Type: ws.TypeResponseRecorded, Payload: ws.ResultsPayload{Results: results, Stats: h.stats()}})

	// the final answer ends the poll; recorded-response goes out first
	if sum != nil {
		h.polls.Finalize(*sum)
	}

	writeJSON(w, http.StatusOK, ResultsResponse{Results: results, Stats: h.stats()})
}

// GET /poll/history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "poll history is not enabled"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.history.ListSummaries(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.PollSummary{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

// GET /chat
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ChatHistoryResponse{Items: h.feed.History(), CooldownSec: h.systemCooldownSec})
}

// POST /chat
func (h *Handler) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	var req PostChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		h.writeError(w, domain.ErrEmptyMessage)
		return
	}
	// cap counts characters, not bytes
	if utf8.RuneCountInString(text) > h.maxMessageLen {
		h.writeError(w, domain.ErrMessageTooLong)
		return
	}

	sender, role := "Teacher", domain.RoleTeacher
	if req.ParticipantID != "" {
		p, ok := h.registry.ByID(req.ParticipantID)
		if !ok {
			h.writeError(w, domain.ErrUnknownParticipant)
			return
		}
		sender, role = p.Name, p.Role
	}

	posted := h.feed.Post(role, sender, text)
	h.hub.Broadcast(ws.Message{Type: ws.TypeChatMessage, Payload: ws.ChatEventPayload{Message: posted}})

	writeJSON(w, http.StatusCreated, posted)
}

// DELETE /chat
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	h.feed.Clear()
	h.hub.Broadcast(ws.Message{Type: ws.TypeChatCleared})
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
