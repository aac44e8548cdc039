package http

import "github.com/classpulse/poll-service/internal/domain"

type CreatePollRequest struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type SubmitResponseRequest struct {
	ParticipantID string `json:"participant_id"`
	OptionIndex   *int   `json:"option_index"`
}

type PostChatRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Message       string `json:"message"`
}

type PollResponse struct {
	Poll  domain.PollView `json:"poll"`
	Stats domain.Stats    `json:"stats"`
}

type ResultsResponse struct {
	Results domain.Results `json:"results"`
	Stats   domain.Stats   `json:"stats"`
}

type JoinResponse struct {
	Participant domain.Participant `json:"participant"`
	Stats       domain.Stats       `json:"stats"`
}

type ParticipantsResponse struct {
	Items []domain.Participant `json:"items"`
}

type HistoryResponse struct {
	Items []domain.PollSummary `json:"items"`
}

type ChatHistoryResponse struct {
	Items       []domain.ChatMessage `json:"items"`
	CooldownSec int                  `json:"cooldown_sec,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
