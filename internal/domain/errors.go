package domain

import "errors"

// Validation failures (malformed input at the boundary).
var (
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrTooFewOptions  = errors.New("poll needs at least two options")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrEmptyName      = errors.New("name is empty")
)

// State conflicts (operation invalid for current state).
var (
	ErrNameTaken        = errors.New("name already taken")
	ErrAlreadyJoined    = errors.New("connection already joined")
	ErrPollNotWaiting   = errors.New("poll is not waiting")
	ErrPollNotActive    = errors.New("poll is not active")
	ErrAlreadyAnswered  = errors.New("participant already answered")
	ErrOptionOutOfRange = errors.New("option index out of range")
)

// Not found.
var (
	ErrNoPoll             = errors.New("no current poll")
	ErrUnknownParticipant = errors.New("unknown participant")
)
