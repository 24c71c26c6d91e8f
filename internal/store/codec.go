package store

import (
	"encoding/json"
	"fmt"
	"time"

	"batepapo/internal/model"
)

// messageRecord is the persisted form of a message for key-value backends.
// CreatedAt keeps nanoseconds, which the wire form drops.
type messageRecord struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	Time      string `json:"time"`
	CreatedAt int64  `json:"created_at"`
}

// EncodeMessage serializes m for backends that store opaque values.
func EncodeMessage(m model.Message) ([]byte, error) {
	data, err := json.Marshal(messageRecord{
		ID:        m.ID,
		From:      m.From,
		To:        m.To,
		Text:      m.Text,
		Type:      string(m.Type),
		Time:      m.Time,
		CreatedAt: m.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return data, nil
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(data []byte) (model.Message, error) {
	var r messageRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return model.Message{
		ID:        r.ID,
		From:      r.From,
		To:        r.To,
		Text:      r.Text,
		Type:      model.Kind(r.Type),
		Time:      r.Time,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}, nil
}
