// Package visibility decides which log entries a viewer may read.
//
// Visibility is keyed on the viewer's name only, not on current
// registration: a participant that has been evicted can still read the
// private messages it sent or received by polling under the same name.
package visibility

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"batepapo/internal/model"
)

// Visibility classifies a message relative to one viewer.
type Visibility int

const (
	// Hidden is a direct message between two other participants.
	Hidden Visibility = iota
	// Status is a system join/leave announcement.
	Status
	// Public is a broadcast message.
	Public
	// Sender is a direct message the viewer sent.
	Sender
	// Recipient is a direct message addressed to the viewer.
	Recipient
)

func (v Visibility) String() string {
	switch v {
	case Status:
		return "status"
	case Public:
		return "public"
	case Sender:
		return "sender"
	case Recipient:
		return "recipient"
	default:
		return "hidden"
	}
}

// Visible reports whether the classification allows reading.
func (v Visibility) Visible() bool {
	return v != Hidden
}

// Classify is a pure predicate over (message, viewer).
func Classify(msg model.Message, viewer string) Visibility {
	switch msg.Type {
	case model.KindStatus:
		return Status
	case model.KindBroadcast:
		return Public
	case model.KindDirect:
		switch viewer {
		case msg.From:
			return Sender
		case msg.To:
			return Recipient
		}
	}
	return Hidden
}

// Filter keeps the messages viewer may see, in log order, then keeps only
// the last limit of those when limit > 0.
func Filter(msgs []model.Message, viewer string, limit int) []model.Message {
	visible := lo.Filter(msgs, func(m model.Message, _ int) bool {
		return Classify(m, viewer).Visible()
	})
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	return visible
}

// ParseLimit reads the optional limit query value. Anything that is not a
// positive integer means no truncation and yields 0.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
