package model

import (
	"encoding/json"
	"time"
)

// Participant is a registered chat member.
// Name never changes once registered; only LastSeen moves forward.
type Participant struct {
	Name     string
	LastSeen time.Time
}

type participantJSON struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

// MarshalJSON exposes LastSeen as lastStatus in Unix milliseconds.
func (p Participant) MarshalJSON() ([]byte, error) {
	return json.Marshal(participantJSON{Name: p.Name, LastStatus: p.LastSeen.UnixMilli()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Participant) UnmarshalJSON(data []byte) error {
	var raw participantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.LastSeen = time.UnixMilli(raw.LastStatus)
	return nil
}
