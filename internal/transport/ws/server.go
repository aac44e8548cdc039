package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/classpulse/poll-service/internal/domain"
	"github.com/classpulse/poll-service/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server routes inbound events to the services and fans results back out:
// one ack to the originator per state-changing event, plus a sanitized
// broadcast to everyone whenever shared state changed.
type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub

	polls    *service.PollService
	registry *service.RegistryService
	feed     *service.FeedService

	maxMessageLen     int
	systemCooldownSec int
	pingEvery         time.Duration

	mu       sync.Mutex
	teachers map[string]struct{} // conn ids that joined as teacher
}

func NewServer(hub *Hub, polls *service.PollService, registry *service.RegistryService, feed *service.FeedService, maxMessageLen, systemCooldownSec int) *Server {
	if maxMessageLen <= 0 {
		maxMessageLen = 500
	}
	s := &Server{
		hub:               hub,
		polls:             polls,
		registry:          registry,
		feed:              feed,
		maxMessageLen:     maxMessageLen,
		systemCooldownSec: systemCooldownSec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
		teachers:  make(map[string]struct{}),
	}

	// Single convergence point: timer-driven, manual and full-roster ends all
	// pass through the state machine's finalize hook, so this broadcast fires
	// exactly once per poll instance.
	polls.OnFinalized(s.handleFinalized)

	return s
}

// handleFinalized broadcasts the end of a poll. The payload is built from the
// summary, not from the current session: a replacement poll may already be
// waiting by the time the hook runs, and its state must not leak into the
// ended broadcast. Only the stats block reads live state.
func (s *Server) handleFinalized(sum domain.PollSummary) {
	s.feed.PostSystem("Poll ended: " + sum.Question)
	s.hub.Broadcast(Message{Type: TypePollEnded, Payload: PollEndedPayload{
		PollID:      sum.PollID,
		Question:    sum.Question,
		Options:     sum.Options,
		Results:     service.SummaryResults(sum),
		CompletedAt: sum.CompletedAt,
		Stats:       s.stats(),
	}})
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWSConn(conn)
	s.hub.Add(c)
	slog.Debug("ws connected", "conn", c.ID())

	go s.writeLoop(c)
	s.readLoop(c)

	s.handleDisconnect(c)
	s.hub.Remove(c.ID())
	_ = c.Close()
}

func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(1 << 16)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.handleEvent(c, msg)
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

// handleEvent dispatches a single inbound event. All in-memory mutations
// complete before any send.
func (s *Server) handleEvent(c Conn, msg Message) {
	switch msg.Type {
	case EventJoinStudent:
		s.joinStudent(c, msg)
	case EventJoinTeacher:
		s.joinTeacher(c, msg)
	case EventCreatePoll:
		s.createPoll(c, msg)
	case EventStartPoll:
		s.startPoll(c, msg)
	case EventEndPoll:
		s.endPoll(c, msg)
	case EventSubmitResponse:
		s.submitResponse(c, msg)
	case EventGetPollStatus:
		_ = c.Send(Message{Type: successType(msg.Type), Payload: s.snapshot(nil)})
	case EventGetResults:
		_ = c.Send(Message{Type: successType(msg.Type), Payload: ResultsPayload{
			Results: s.polls.Results(),
			Stats:   s.stats(),
		}})
	case EventSendChat:
		s.sendChat(c, msg)
	case EventGetChatHistory:
		_ = c.Send(Message{Type: successType(msg.Type), Payload: ChatHistoryPayload{
			Messages:    s.feed.History(),
			CooldownSec: s.systemCooldownSec,
		}})
	case EventKick:
		s.kick(c, msg)
	case EventClearChat:
		s.clearChat(c, msg)
	default:
		// unknown events are ignored
	}
}

func (s *Server) joinStudent(c Conn, msg Message) {
	var p JoinPayload
	if err := decode(msg.Payload, &p); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		s.sendError(c, msg.Type, domain.ErrEmptyName)
		return
	}

	participant, err := s.registry.Add(c.ID(), name, domain.RoleStudent)
	if err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	// roster entry only when a poll session exists; the registry record is
	// poll-independent either way
	if err := s.polls.JoinRoster(participant.ID); err != nil && err != domain.ErrNoPoll {
		slog.Warn("join roster failed", "participant", participant.ID, "err", err)
	}

	notice := s.feed.PostSystem(name + " joined")

	_ = c.Send(Message{Type: successType(msg.Type), Payload: s.snapshot(participant)})
	s.hub.Broadcast(Message{Type: TypeParticipantJoined, Payload: ParticipantEventPayload{
		ParticipantID: participant.ID,
		Name:          participant.Name,
		Stats:         s.stats(),
	}})
	s.hub.Broadcast(Message{Type: TypeChatMessage, Payload: ChatEventPayload{Message: notice}})
	slog.Info("student joined", "name", name, "participant", participant.ID)
}

func (s *Server) joinTeacher(c Conn, msg Message) {
	s.mu.Lock()
	s.teachers[c.ID()] = struct{}{}
	s.mu.Unlock()

	_ = c.Send(Message{Type: successType(msg.Type), Payload: s.snapshot(nil)})
}

func (s *Server) createPoll(c Conn, msg Message) {
	var p CreatePollPayload
	if err := decode(msg.Payload, &p); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}

	poll, err := s.polls.Create(p.Question, p.Options, p.TimeLimitSec)
	if err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	// connected students carry over into the fresh roster
	for _, part := range s.registry.ListConnected() {
		if part.Role == domain.RoleStudent {
			_ = s.polls.JoinRoster(part.ID)
		}
	}
	_ = c.Send(Message{Type: successType(msg.Type), Payload: PollEventPayload{Poll: poll, Stats: s.stats()}})
	s.hub.Broadcast(Message{Type: TypePollCreated, Payload: PollEventPayload{Poll: poll, Stats: s.stats()}})

	// create-poll implies start
	if err := s.polls.Start(); err != nil {
		slog.Warn("auto start failed", "err", err)
		return
	}
	s.broadcastStarted()
	slog.Info("poll created", "poll_id", poll.ID, "question", poll.Question)
}

func (s *Server) startPoll(c Conn, msg Message) {
	if err := s.polls.Start(); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	poll, _ := s.polls.Snapshot()
	_ = c.Send(Message{Type: successType(msg.Type), Payload: PollEventPayload{Poll: poll, Stats: s.stats()}})
	s.broadcastStarted()
}

func (s *Server) broadcastStarted() {
	poll, ok := s.polls.Snapshot()
	if !ok {
		return
	}
	s.hub.Broadcast(Message{Type: TypePollStarted, Payload: PollEventPayload{Poll: poll, Stats: s.stats()}})
}

func (s *Server) endPoll(c Conn, msg Message) {
	if err := s.polls.End(); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	// the finalize hook has already broadcast poll-ended
	_ = c.Send(Message{Type: successType(msg.Type), Payload: ResultsPayload{
		Results: s.polls.Results(),
		Stats:   s.stats(),
	}})
}

func (s *Server) submitResponse(c Conn, msg Message) {
	var p SubmitPayload
	if err := decode(msg.Payload, &p); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	if p.OptionIndex == nil {
		s.sendError(c, msg.Type, domain.ErrOptionOutOfRange)
		return
	}
	participant, ok := s.registry.ByConn(c.ID())
	if !ok {
		s.sendError(c, msg.Type, domain.ErrUnknownParticipant)
		return
	}

	sum, err := s.polls.SubmitResponse(participant.ID, *p.OptionIndex)
	if err != nil {
		s.sendError(c, msg.Type, err)
		return
	}

	results := s.polls.Results()
	_ = c.Send(Message{Type: successType(msg.Type), Payload: ResultsPayload{Results: results, Stats: s.stats()}})
	s.hub.Broadcast(Message{Type: TypeResponseRecorded, Payload: ResultsPayload{Results: results, Stats: s.stats()}})

	// the final answer ends the poll; clients see their ack and the recorded
	// response before the ended broadcast
	if sum != nil {
		s.polls.Finalize(*sum)
	}
}

func (s *Server) sendChat(c Conn, msg Message) {
	var p ChatPayload
	if err := decode(msg.Payload, &p); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}
	text := strings.TrimSpace(p.Message)
	if text == "" {
		s.sendError(c, msg.Type, domain.ErrEmptyMessage)
		return
	}
	// cap counts characters, not bytes
	if utf8.RuneCountInString(text) > s.maxMessageLen {
		s.sendError(c, msg.Type, domain.ErrMessageTooLong)
		return
	}

	sender, role, ok := s.senderFor(c.ID())
	if !ok {
		s.sendError(c, msg.Type, domain.ErrUnknownParticipant)
		return
	}

	posted := s.feed.Post(role, sender, text)
	_ = c.Send(Message{Type: successType(msg.Type), Payload: ChatEventPayload{Message: posted}})
	s.hub.Broadcast(Message{Type: TypeChatMessage, Payload: ChatEventPayload{Message: posted}})
}

func (s *Server) kick(c Conn, msg Message) {
	var p KickPayload
	if err := decode(msg.Payload, &p); err != nil {
		s.sendError(c, msg.Type, err)
		return
	}

	victim, ok := s.registry.ByID(p.ParticipantID)
	if !ok {
		s.sendError(c, msg.Type, domain.ErrUnknownParticipant)
		return
	}

	// removal first: the victim's later transport disconnect then finds no
	// registry record and stays silent
	s.registry.Remove(victim.ID)
	s.polls.RemoveParticipant(victim.ID)
	notice := s.feed.PostSystem(victim.Name + " was removed from the session")

	// targeted notice happens-before the removal broadcast and the close
	s.hub.Send(victim.ConnID, Message{Type: TypeKicked, Payload: ParticipantEventPayload{
		ParticipantID: victim.ID,
		Name:          victim.Name,
		Reason:        p.Reason,
		Stats:         s.stats(),
	}})

	_ = c.Send(Message{Type: successType(msg.Type), Payload: ParticipantEventPayload{
		ParticipantID: victim.ID,
		Name:          victim.Name,
		Stats:         s.stats(),
	}})
	s.hub.Broadcast(Message{Type: TypeParticipantKicked, Payload: ParticipantEventPayload{
		ParticipantID: victim.ID,
		Name:          victim.Name,
		Reason:        p.Reason,
		Stats:         s.stats(),
	}})
	s.hub.Broadcast(Message{Type: TypeChatMessage, Payload: ChatEventPayload{Message: notice}})

	s.hub.CloseConn(victim.ConnID)
	slog.Info("participant kicked", "participant", victim.ID, "name", victim.Name)
}

func (s *Server) clearChat(c Conn, msg Message) {
	s.feed.Clear()
	_ = c.Send(Message{Type: successType(msg.Type)})
	s.hub.Broadcast(Message{Type: TypeChatCleared})
}

// handleDisconnect runs the cleanup path for a dropped connection. A kicked
// participant was already removed from the registry, so the lookup fails and
// no second departure is broadcast.
func (s *Server) handleDisconnect(c Conn) {
	s.mu.Lock()
	delete(s.teachers, c.ID())
	s.mu.Unlock()

	participant, ok := s.registry.ByConn(c.ID())
	if !ok {
		return
	}
	s.registry.Remove(participant.ID)
	s.polls.RemoveParticipant(participant.ID)
	notice := s.feed.PostSystem(participant.Name + " left")

	s.hub.Broadcast(Message{Type: TypeParticipantLeft, Payload: ParticipantEventPayload{
		ParticipantID: participant.ID,
		Name:          participant.Name,
		Stats:         s.stats(),
	}})
	s.hub.Broadcast(Message{Type: TypeChatMessage, Payload: ChatEventPayload{Message: notice}})
	slog.Info("participant left", "participant", participant.ID, "name", participant.Name)
}

func (s *Server) sendError(c Conn, event string, err error) {
	_ = c.Send(Message{Type: errorType(event), Payload: ErrorPayload{Error: err.Error()}})
}

func (s *Server) stats() domain.Stats {
	st := s.polls.Stats()
	st.Participants = s.registry.CountConnected()
	return st
}

func (s *Server) snapshot(participant *domain.Participant) StatePayload {
	out := StatePayload{
		Participant:  participant,
		Stats:        s.stats(),
		Participants: s.registry.ListConnected(),
	}
	if poll, ok := s.polls.Snapshot(); ok {
		out.Poll = &poll
		results := s.polls.Results()
		out.Results = &results
	}
	return out
}

func (s *Server) senderFor(connID string) (name string, role domain.Role, ok bool) {
	if p, found := s.registry.ByConn(connID); found {
		return p.Name, p.Role, true
	}
	s.mu.Lock()
	_, isTeacher := s.teachers[connID]
	s.mu.Unlock()
	if isTeacher {
		return "Teacher", domain.RoleTeacher, true
	}
	return "", "", false
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	id     string
	conn   *websocket.Conn
	sendMu chan struct{}
	closed chan struct{}
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		conn:   c,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) ID() string { return c.id }
