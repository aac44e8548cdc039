package service

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/classpulse/poll-service/internal/domain"

	"github.com/google/uuid"
)

// FinalizeFunc receives the summary of a finalized poll. Hooks run outside
// the service lock, once per poll instance. End and the deadline timer run
// them directly; when a submission completes the roster the summary is
// returned to the caller instead, so acks go out before the hooks fire.
type FinalizeFunc func(domain.PollSummary)

// PollService owns the single current poll session: its lifecycle
// (waiting -> active -> ended), roster, response ledger and deadline timer.
// All mutations go through one mutex so the "last answer ends the poll" check
// is atomic with the response that triggers it.
type PollService struct {
	mu sync.Mutex

	defaultLimit int
	maxLimit     int

	sess           *pollSession
	questionsAsked int

	timer    *time.Timer
	timerGen uint64
	tick     time.Duration // timer unit, overridable in tests

	onFinalized []FinalizeFunc
}

type pollSession struct {
	id             string
	question       string
	options        []string
	timeLimit      int
	status         domain.PollStatus
	questionNumber int
	createdAt      time.Time
	startedAt      *time.Time
	endedAt        *time.Time

	roster map[string]bool // participant id -> has answered
	ledger map[string]int  // participant id -> chosen option index
}

func NewPollService(defaultLimitSec, maxLimitSec int) *PollService {
	if defaultLimitSec <= 0 {
		defaultLimitSec = 60
	}
	return &PollService{
		defaultLimit: defaultLimitSec,
		maxLimit:     maxLimitSec,
		tick:         time.Second,
	}
}

// OnFinalized registers a hook invoked once per finalized poll.
func (s *PollService) OnFinalized(fn FinalizeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinalized = append(s.onFinalized, fn)
}

// Create replaces the current session with a fresh waiting one. A pending
// deadline timer from the previous session is disarmed; its callback becomes
// a no-op via the generation counter.
func (s *PollService) Create(question string, options []string, timeLimitSec int) (domain.PollView, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.PollView{}, domain.ErrEmptyQuestion
	}
	if len(options) < 2 {
		return domain.PollView{}, domain.ErrTooFewOptions
	}
	if timeLimitSec <= 0 {
		timeLimitSec = s.defaultLimit
	}
	if s.maxLimit > 0 && timeLimitSec > s.maxLimit {
		timeLimitSec = s.maxLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmTimerLocked()
	s.questionsAsked++
	s.sess = &pollSession{
		id:             uuid.NewString(),
		question:       question,
		options:        append([]string(nil), options...),
		timeLimit:      timeLimitSec,
		status:         domain.StatusWaiting,
		questionNumber: s.questionsAsked,
		createdAt:      time.Now(),
		roster:         make(map[string]bool),
		ledger:         make(map[string]int),
	}
	return s.sess.view(), nil
}

// Start moves the session from waiting to active and arms the deadline
// timer. Calling it from any other state fails.
func (s *PollService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return domain.ErrNoPoll
	}
	if s.sess.status != domain.StatusWaiting {
		return domain.ErrPollNotWaiting
	}

	now := time.Now()
	s.sess.status = domain.StatusActive
	s.sess.startedAt = &now

	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(time.Duration(s.sess.timeLimit)*s.tick, func() {
		s.endFromTimer(gen)
	})
	return nil
}

// JoinRoster adds a participant to the current session's roster. Returns
// ErrNoPoll when no session exists; joining twice is a no-op.
func (s *PollService) JoinRoster(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return domain.ErrNoPoll
	}
	if _, ok := s.sess.roster[participantID]; !ok {
		s.sess.roster[participantID] = false
	}
	return nil
}

// SubmitResponse records a participant's answer. The full-roster check and
// the resulting end() run under the same lock as the recording, so two
// racing submissions cannot both fire the transition. When this submission
// completed the roster the poll is ended atomically and its summary is
// returned; the caller acknowledges first, then hands it to Finalize.
func (s *PollService) SubmitResponse(participantID string, optionIndex int) (*domain.PollSummary, error) {
	s.mu.Lock()

	if s.sess == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoPoll
	}
	if s.sess.status != domain.StatusActive {
		s.mu.Unlock()
		return nil, domain.ErrPollNotActive
	}
	answered, ok := s.sess.roster[participantID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrUnknownParticipant
	}
	if answered {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyAnswered
	}
	if optionIndex < 0 || optionIndex >= len(s.sess.options) {
		s.mu.Unlock()
		return nil, domain.ErrOptionOutOfRange
	}

	s.sess.ledger[participantID] = optionIndex
	s.sess.roster[participantID] = true

	if len(s.sess.roster) > 0 && len(s.sess.ledger) == len(s.sess.roster) {
		sum := s.endLocked()
		s.mu.Unlock()
		return &sum, nil
	}
	s.mu.Unlock()
	return nil, nil
}

// Finalize runs the registered hooks for a poll that SubmitResponse just
// ended. The state transition already happened under the lock; only one
// caller ever holds a given summary.
func (s *PollService) Finalize(sum domain.PollSummary) {
	s.fireFinalized(sum)
}

// End finalizes an active poll. Fails from waiting or ended, so a stale
// timer callback or a double click can never finalize twice.
func (s *PollService) End() error {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return domain.ErrNoPoll
	}
	if s.sess.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.ErrPollNotActive
	}
	sum := s.endLocked()
	s.mu.Unlock()
	s.fireFinalized(sum)
	return nil
}

// RemoveParticipant drops the roster and ledger entries for a participant.
// Intentionally no auto-end check: removal is for disconnects and kicks, not
// an answer, and must not spuriously complete the roster.
func (s *PollService) RemoveParticipant(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return
	}
	delete(s.sess.roster, participantID)
	delete(s.sess.ledger, participantID)
}

// Results recomputes the per-option tallies from the ledger. Never cached.
func (s *PollService) Results() domain.Results {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return domain.Results{Counts: []int{}, Percentages: []int{}}
	}
	return aggregate(s.sess.ledger, len(s.sess.options), len(s.sess.roster))
}

// Stats returns the poll-side derived counters. The registry-side
// participant count is filled in by the caller.
func (s *PollService) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.Stats{QuestionsAsked: s.questionsAsked}
	if s.sess == nil {
		return st
	}
	st.HasPoll = true
	st.Status = s.sess.status
	st.QuestionNumber = s.sess.questionNumber
	st.RosterSize = len(s.sess.roster)
	st.ResponseCount = len(s.sess.ledger)
	return st
}

// Snapshot returns the sanitized view of the current poll, if any.
func (s *PollService) Snapshot() (domain.PollView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return domain.PollView{}, false
	}
	return s.sess.view(), true
}

// endFromTimer is the deadline callback. The generation token guards against
// a timer from a replaced or already-ended poll firing late.
func (s *PollService) endFromTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.sess == nil || s.sess.status != domain.StatusActive {
		s.mu.Unlock()
		return
	}
	sum := s.endLocked()
	s.mu.Unlock()
	slog.Info("poll ended by deadline", "poll_id", sum.PollID, "responses", sum.Participants)
	s.fireFinalized(sum)
}

func (s *PollService) endLocked() domain.PollSummary {
	now := time.Now()
	s.sess.status = domain.StatusEnded
	s.sess.endedAt = &now
	s.disarmTimerLocked()

	res := aggregate(s.sess.ledger, len(s.sess.options), len(s.sess.roster))
	return domain.PollSummary{
		PollID:       s.sess.id,
		Question:     s.sess.question,
		Options:      append([]string(nil), s.sess.options...),
		Counts:       res.Counts,
		Participants: len(s.sess.roster),
		CompletedAt:  now,
	}
}

func (s *PollService) disarmTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *PollService) fireFinalized(sum domain.PollSummary) {
	s.mu.Lock()
	hooks := append([]FinalizeFunc(nil), s.onFinalized...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(sum)
	}
}

func (p *pollSession) view() domain.PollView {
	return domain.PollView{
		ID:             p.id,
		Question:       p.question,
		Options:        append([]string(nil), p.options...),
		Status:         p.status,
		TimeLimitSec:   p.timeLimit,
		QuestionNumber: p.questionNumber,
		CreatedAt:      p.createdAt,
		StartedAt:      p.startedAt,
		EndedAt:        p.endedAt,
	}
}
