package presenter

import "toastd/internal/toast"

// View is the wire form of a toast shared by the websocket hub and the HTTP
// API.
type View struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Kind        string `json:"kind"`
	Priority    string `json:"priority"`
	DurationMS  int64  `json:"duration_ms"`
	DedupeKey   string `json:"dedupe_key,omitempty"`
	Dismissable bool   `json:"dismissable"`
	Action      string `json:"action,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func ViewOf(it toast.Item) View {
	v := View{
		ID:          it.ID.String(),
		Message:     it.Message,
		Kind:        string(it.Kind),
		Priority:    it.Options.Priority.String(),
		DurationMS:  it.Options.Duration.Milliseconds(),
		DedupeKey:   it.Options.DedupeKey,
		Dismissable: it.Options.AllowsUserDismiss,
		CreatedAt:   it.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if it.Options.Action != nil {
		v.Action = it.Options.Action.Title
	}
	return v
}

func kindIcon(k toast.Kind) string {
	switch k {
	case toast.KindSuccess:
		return "✅"
	case toast.KindError:
		return "❌"
	case toast.KindWarning:
		return "⚠️"
	case toast.KindInfo:
		return "ℹ️"
	default:
		return "🔔"
	}
}
