package domain

import "time"

type PollStatus string

const (
	StatusWaiting PollStatus = "waiting"
	StatusActive  PollStatus = "active"
	StatusEnded   PollStatus = "ended"
)

// PollView is the sanitized projection of the current poll sent over the
// wire. Internal roster/ledger maps and the deadline timer never leave the
// service layer.
type PollView struct {
	ID             string     `json:"id"`
	Question       string     `json:"question"`
	Options        []string   `json:"options"`
	Status         PollStatus `json:"status"`
	TimeLimitSec   int        `json:"time_limit_sec"`
	QuestionNumber int        `json:"question_number"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Results is a pure projection of the response ledger: one entry per option
// index, zero-filled, recomputed on every query.
type Results struct {
	Counts      []int `json:"counts"`
	Percentages []int `json:"percentages"`
	Total       int   `json:"total"`
	RosterSize  int   `json:"roster_size"`
}

// Stats is the derived snapshot attached to every broadcast so clients never
// infer state from deltas alone. Participants is the connected count from the
// identity registry; the rest comes from the poll session.
type Stats struct {
	HasPoll        bool       `json:"has_poll"`
	Status         PollStatus `json:"status,omitempty"`
	QuestionNumber int        `json:"question_number"`
	RosterSize     int        `json:"roster_size"`
	ResponseCount  int        `json:"response_count"`
	QuestionsAsked int        `json:"questions_asked"`
	Participants   int        `json:"participants"`
}

// PollSummary is the record handed to the history collaborator when a poll
// is finalized.
type PollSummary struct {
	PollID       string    `json:"poll_id"`
	Question     string    `json:"question"`
	Options      []string  `json:"options"`
	Counts       []int     `json:"counts"`
	Participants int       `json:"participants"`
	CompletedAt  time.Time `json:"completed_at"`
}
