package domain

import "time"

const MaxMessageTextLen = 4096

// Sender is the author reference embedded in a chat message.
type Sender struct {
	ID      UserID `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// ChatMessage is immutable once stored in a room's history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func SenderOf(u User) Sender {
	return Sender{ID: u.ID, Name: u.Username, Picture: u.Picture}
}
