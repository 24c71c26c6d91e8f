package model

import "time"

// Kind is the wire name of a message type.
type Kind string

const (
	// KindBroadcast is a public message addressed to everyone.
	KindBroadcast Kind = "message"
	// KindDirect is a private message visible to its sender and recipient only.
	KindDirect Kind = "private_message"
	// KindStatus is a system announcement (join/leave). Never accepted from clients.
	KindStatus Kind = "status"
)

// Everyone is the broadcast target sentinel.
const Everyone = "Todos"

// Status message texts.
const (
	JoinedText = "entra na sala..."
	LeftText   = "sai da sala..."
)

// TimeLayout formats Message.Time (HH:mm:ss).
const TimeLayout = "15:04:05"

// Message represents an immutable chat event
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Type      Kind      `json:"type"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"-"`
}

// NewStatusMessage builds a system announcement for name.
func NewStatusMessage(name, text string, at time.Time) Message {
	return Message{
		From:      name,
		To:        Everyone,
		Text:      text,
		Type:      KindStatus,
		Time:      at.Format(TimeLayout),
		CreatedAt: at,
	}
}
