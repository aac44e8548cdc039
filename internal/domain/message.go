package domain

import "time"

type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
