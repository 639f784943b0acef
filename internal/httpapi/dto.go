package httpapi

import (
	"errors"
	"strings"
	"time"

	"toastd/internal/presenter"
	"toastd/internal/toast"
)

// ToastRequest is the body of POST /v1/toasts. Omitted fields take
// toast.DefaultOptions.
type ToastRequest struct {
	Message     string `json:"message"`
	Kind        string `json:"kind,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DurationMS  *int64 `json:"duration_ms,omitempty"`
	DedupeKey   string `json:"dedupe_key,omitempty"`
	Dismissable *bool  `json:"dismissable,omitempty"`
	// Action is the button title. Pressing it publishes a toast.action event.
	Action string `json:"action,omitempty"`
}

const maxMessageLen = 1024

func (r ToastRequest) options() (toast.Kind, toast.Options, error) {
	if strings.TrimSpace(r.Message) == "" {
		return "", toast.Options{}, errors.New("message is required")
	}
	if len(r.Message) > maxMessageLen {
		return "", toast.Options{}, errors.New("message is too long")
	}
	kind, err := toast.ParseKind(r.Kind)
	if err != nil {
		return "", toast.Options{}, err
	}
	opts := toast.DefaultOptions()
	if opts.Priority, err = toast.ParsePriority(r.Priority); err != nil {
		return "", toast.Options{}, err
	}
	if r.DurationMS != nil {
		opts.Duration = time.Duration(*r.DurationMS) * time.Millisecond
	}
	opts.DedupeKey = r.DedupeKey
	if r.Dismissable != nil {
		opts.AllowsUserDismiss = *r.Dismissable
	}
	return kind, opts, nil
}

type AdmissionResponse struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func admissionResponse(a toast.Admission) AdmissionResponse {
	out := AdmissionResponse{ID: a.ID.String(), Outcome: a.Outcome.String()}
	if a.Outcome == toast.OutcomeDropped {
		out.Reason = a.Reason.String()
	}
	return out
}

type StateResponse struct {
	State           string           `json:"state"`
	Active          *presenter.View  `json:"active,omitempty"`
	Suspended       *presenter.View  `json:"suspended,omitempty"`
	Queue           []presenter.View `json:"queue"`
	Backgrounded    bool             `json:"backgrounded"`
	LowPower        bool             `json:"low_power"`
	LastPresentAt   *time.Time       `json:"last_present_at,omitempty"`
	NextPresentInMS int64            `json:"next_present_in_ms"`
	TrackedDedupes  int              `json:"tracked_dedupe_keys"`
}

func stateResponse(st toast.Status) StateResponse {
	out := StateResponse{
		State:           st.State.Kind().String(),
		Queue:           make([]presenter.View, 0, len(st.Queue)),
		Backgrounded:    st.Backgrounded,
		LowPower:        st.LowPower,
		NextPresentInMS: st.NextPresentIn.Milliseconds(),
		TrackedDedupes:  st.TrackedDedupes,
	}
	if it, ok := st.State.Active(); ok {
		v := presenter.ViewOf(it)
		out.Active = &v
	}
	if in, ok := st.State.(toast.Interrupted); ok {
		v := presenter.ViewOf(in.Suspended)
		out.Suspended = &v
	}
	for _, it := range st.Queue {
		out.Queue = append(out.Queue, presenter.ViewOf(it))
	}
	if !st.LastPresentAt.IsZero() {
		t := st.LastPresentAt
		out.LastPresentAt = &t
	}
	return out
}

type PowerRequest struct {
	LowPower bool `json:"low_power"`
}

type PowerResponse struct {
	LowPower bool `json:"low_power"`
	Applied  bool `json:"applied"`
}

type CountResponse struct {
	Dismissed int `json:"dismissed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ActionEvent is published on the bus when a toast's action is pressed.
type ActionEvent struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

const EventAction = "toast.action"
