package visibility

import (
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"batepapo/internal/model"
)

func direct(from, to string) model.Message {
	return model.Message{From: from, To: to, Text: "psst", Type: model.KindDirect}
}

func TestClassify_Direct(t *testing.T) {
	msg := direct("A", "B")

	require.Equal(t, Sender, Classify(msg, "A"))
	require.Equal(t, Recipient, Classify(msg, "B"))
	require.Equal(t, Hidden, Classify(msg, "C"))
	require.False(t, Classify(msg, "C").Visible())
	require.False(t, Classify(msg, "").Visible())
}

func TestClassify_PublicAndStatusVisibleToAnyone(t *testing.T) {
	broadcast := model.Message{From: "A", To: model.Everyone, Type: model.KindBroadcast}
	status := model.Message{From: "A", To: model.Everyone, Type: model.KindStatus}

	for _, viewer := range []string{"A", "B", "someone-who-never-joined", ""} {
		require.Equal(t, Public, Classify(broadcast, viewer), viewer)
		require.Equal(t, Status, Classify(status, viewer), viewer)
	}
}

func TestClassify_UnknownKindHidden(t *testing.T) {
	require.Equal(t, Hidden, Classify(model.Message{From: "A", To: "B", Type: "whisper"}, "A"))
}

func TestVisibility_String(t *testing.T) {
	require.Equal(t, "hidden", Hidden.String())
	require.Equal(t, "status", Status.String())
	require.Equal(t, "public", Public.String())
	require.Equal(t, "sender", Sender.String())
	require.Equal(t, "recipient", Recipient.String())
}

func TestFilter_KeepsOrder(t *testing.T) {
	log := []model.Message{
		{From: "A", Type: model.KindStatus, Text: "1"},
		direct("B", "C"),
		{From: "B", To: model.Everyone, Type: model.KindBroadcast, Text: "2"},
		direct("C", "A"),
	}
	got := Filter(log, "A", 0)
	require.Len(t, got, 3)
	require.Equal(t, log[0], got[0])
	require.Equal(t, log[2], got[1])
	require.Equal(t, log[3], got[2])
}

// The tail is taken after filtering, not from the raw log.
func TestFilter_LimitAppliesToFilteredSequence(t *testing.T) {
	var log []model.Message
	for i := 1; i <= 5; i++ {
		log = append(log, model.Message{From: "A", To: model.Everyone, Type: model.KindBroadcast, Text: fmt.Sprint(i)})
		log = append(log, direct("X", "Y"))
	}

	got := Filter(log, "viewer", 2)
	require.Equal(t, []string{"4", "5"}, lo.Map(got, func(m model.Message, _ int) string { return m.Text }))
}

func TestFilter_LimitLargerThanResult(t *testing.T) {
	log := []model.Message{{Type: model.KindBroadcast}, {Type: model.KindStatus}}
	require.Len(t, Filter(log, "viewer", 10), 2)
}

func TestFilter_EmptyLog(t *testing.T) {
	got := Filter(nil, "viewer", 3)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"0", 0},
		{"-2", 0},
		{"2.5", 0},
		{"2", 2},
		{" 7 ", 7},
		{"100", 100},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseLimit(tt.raw), "ParseLimit(%q)", tt.raw)
	}
}
