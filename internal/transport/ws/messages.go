package ws

import (
	"time"

	"github.com/classpulse/poll-service/internal/domain"
)

// Inbound event names.
const (
	EventJoinStudent    = "join-as-student"
	EventJoinTeacher    = "join-as-teacher"
	EventCreatePoll     = "create-poll"
	EventStartPoll      = "start-poll"
	EventEndPoll        = "end-poll"
	EventSubmitResponse = "submit-response"
	EventGetPollStatus  = "get-poll-status"
	EventGetResults     = "get-results"
	EventSendChat       = "send-chat-message"
	EventGetChatHistory = "get-chat-history"
	EventKick           = "kick-participant"
	EventClearChat      = "clear-chat"
)

// Broadcast event names.
const (
	TypePollCreated       = "poll-created"
	TypePollStarted       = "poll-started"
	TypePollEnded         = "poll-ended"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
	TypeParticipantKicked = "participant-kicked"
	TypeResponseRecorded  = "response-recorded"
	TypeChatMessage       = "chat-message"
	TypeChatCleared       = "chat-cleared"

	// TypeKicked is the targeted notice sent to the removed participant
	// before the removal broadcast and the forced close.
	TypeKicked = "kicked"
)

// Every state-changing inbound event gets exactly one direct reply, the
// success or the error variant, independent of any broadcast.
func successType(event string) string { return event + "-success" }
func errorType(event string) string   { return event + "-error" }

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- inbound payloads ---

type JoinPayload struct {
	Name string `json:"name"`
}

type CreatePollPayload struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
}

type SubmitPayload struct {
	OptionIndex *int `json:"option_index"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type KickPayload struct {
	ParticipantID string `json:"participant_id"`
	Reason        string `json:"reason"`
}

// --- outbound payloads ---

type ErrorPayload struct {
	Error string `json:"error"`
}

// StatePayload is the sanitized snapshot attached to join acks and status
// queries. Optional parts are omitted when absent.
type StatePayload struct {
	Participant  *domain.Participant  `json:"participant,omitempty"`
	Poll         *domain.PollView     `json:"poll,omitempty"`
	Results      *domain.Results      `json:"results,omitempty"`
	Stats        domain.Stats         `json:"stats"`
	Participants []domain.Participant `json:"participants,omitempty"`
}

type PollEventPayload struct {
	Poll  domain.PollView `json:"poll"`
	Stats domain.Stats    `json:"stats"`
}

type ResultsPayload struct {
	Results domain.Results `json:"results"`
	Stats   domain.Stats   `json:"stats"`
}

// PollEndedPayload carries the finalized poll as it ended. It is built from
// the finalize summary rather than the current session, which may already be
// a replacement by the time the broadcast goes out.
type PollEndedPayload struct {
	PollID      string         `json:"poll_id"`
	Question    string         `json:"question"`
	Options     []string       `json:"options"`
	Results     domain.Results `json:"results"`
	CompletedAt time.Time      `json:"completed_at"`
	Stats       domain.Stats   `json:"stats"`
}

type ParticipantEventPayload struct {
	ParticipantID string       `json:"participant_id"`
	Name          string       `json:"name"`
	Reason        string       `json:"reason,omitempty"`
	Stats         domain.Stats `json:"stats"`
}

type ChatEventPayload struct {
	Message domain.ChatMessage `json:"message"`
}

// CooldownSec is the advisory pacing hint for system notices; the server
// never enforces it.
type ChatHistoryPayload struct {
	Messages    []domain.ChatMessage `json:"messages"`
	CooldownSec int                  `json:"cooldown_sec,omitempty"`
}
