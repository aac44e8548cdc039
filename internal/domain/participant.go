package domain

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleSystem  Role = "system"
)

type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ConnID    string    `json:"-"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joined_at"`
}
