package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_CanInterrupt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		p, other Priority
		want     bool
	}{
		{PriorityCritical, PriorityNormal, true},
		{PriorityCritical, PriorityElevated, true},
		{PriorityCritical, PriorityCritical, false},
		{PriorityElevated, PriorityNormal, true},
		{PriorityElevated, PriorityElevated, false},
		{PriorityElevated, PriorityCritical, false},
		{PriorityNormal, PriorityNormal, false},
		{PriorityNormal, PriorityElevated, false},
		{PriorityNormal, PriorityCritical, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.p.CanInterrupt(tc.other), "%s over %s", tc.p, tc.other)
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Priority{
		"":          PriorityNormal,
		"normal":    PriorityNormal,
		" Elevated": PriorityElevated,
		"CRITICAL":  PriorityCritical,
	} {
		got, err := ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePriority("urgent")
	assert.Error(t, err)
}

func TestPriority_TextRoundTrip(t *testing.T) {
	t.Parallel()

	var p Priority
	require.NoError(t, p.UnmarshalText([]byte("critical")))
	b, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "critical", string(b))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindInfo, k)
	k, err = ParseKind("Warning")
	require.NoError(t, err)
	assert.Equal(t, KindWarning, k)
	_, err = ParseKind("shiny")
	assert.Error(t, err)
}

func TestItem_CanCoalesce(t *testing.T) {
	t.Parallel()

	a := NewItem("a", KindInfo, Options{DedupeKey: "k"})
	b := NewItem("b", KindInfo, Options{DedupeKey: "k"})
	c := NewItem("c", KindInfo, Options{DedupeKey: "other"})
	none1 := NewItem("d", KindInfo, Options{})
	none2 := NewItem("e", KindInfo, Options{})

	assert.True(t, a.CanCoalesce(b))
	assert.False(t, a.CanCoalesce(c))
	assert.False(t, none1.CanCoalesce(none2), "items without keys never coalesce")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestItem_MergeFromPreservesIdentity(t *testing.T) {
	t.Parallel()

	a := NewItem("old", KindInfo, Options{DedupeKey: "k", Duration: time.Second})
	a.CreatedAt = time.Unix(100, 0)
	b := NewItem("new", KindError, Options{DedupeKey: "k", Duration: 5 * time.Second, Priority: PriorityElevated})

	m := a.MergeFrom(b)
	assert.Equal(t, a.ID, m.ID)
	assert.Equal(t, a.CreatedAt, m.CreatedAt)
	assert.Equal(t, "new", m.Message)
	assert.Equal(t, KindError, m.Kind)
	assert.Equal(t, b.Options, m.Options)
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultPolicy().Validate())

	bad := map[string]Policy{
		"negative interval": {MinimumInterval: -1, MaxQueueSize: 1},
		"empty queue":       {MaxQueueSize: 0},
		"negative window":   {MaxQueueSize: 1, CoalescingWindow: -time.Second},
	}
	for name, p := range bad {
		assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy, name)
	}
}

func TestSnapshot_DropsActionHandler(t *testing.T) {
	t.Parallel()

	it := NewItem("boom", KindError, Options{
		Priority:  PriorityCritical,
		Duration:  time.Second,
		DedupeKey: "k",
		Action:    &Action{Title: "Open", Handler: func() {}},
	})
	s := snapshotOf(it, "key", time.Unix(0, 0))
	o := s.Options()

	assert.Equal(t, PriorityCritical, o.Priority)
	assert.Equal(t, "k", o.DedupeKey)
	require.NotNil(t, o.Action)
	assert.Equal(t, "Open", o.Action.Title)
	assert.Nil(t, o.Action.Handler)
}
