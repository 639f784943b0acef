package presenter

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

type dismissRecorder struct {
	mu      sync.Mutex
	methods []toast.DismissalMethod
}

func (r *dismissRecorder) fn(m toast.DismissalMethod) {
	r.mu.Lock()
	r.methods = append(r.methods, m)
	r.mu.Unlock()
}

func (r *dismissRecorder) calls() []toast.DismissalMethod {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toast.DismissalMethod(nil), r.methods...)
}

type stubPresenter struct {
	onDismiss func(toast.DismissalMethod)
	presented int
	removed   int
	updated   int
	lowPower  []bool
	panics    bool
}

func (s *stubPresenter) Present(_ toast.Item, onDismiss func(toast.DismissalMethod)) {
	s.presented++
	s.onDismiss = onDismiss
	if s.panics {
		panic("boom")
	}
}

func (s *stubPresenter) RemoveActive()           { s.removed++ }
func (s *stubPresenter) Update(toast.Item)       { s.updated++ }
func (s *stubPresenter) SetLowPowerMode(on bool) { s.lowPower = append(s.lowPower, on) }
func (s *stubPresenter) ReleaseResources()       {}

func dismissableItem(msg string) toast.Item {
	opts := toast.DefaultOptions()
	opts.AllowsUserDismiss = true
	return toast.NewItem(msg, toast.KindInfo, opts)
}

func TestMulti_FirstDismissWins(t *testing.T) {
	t.Parallel()
	a, b := &stubPresenter{}, &stubPresenter{}
	m := NewMulti(logx.Nop(), a, nil, b)

	rec := &dismissRecorder{}
	m.Present(dismissableItem("hi"), rec.fn)
	require.NotNil(t, a.onDismiss)
	require.NotNil(t, b.onDismiss)

	b.onDismiss(toast.DismissUserInteraction)
	a.onDismiss(toast.DismissAutomatic)
	assert.Equal(t, []toast.DismissalMethod{toast.DismissUserInteraction}, rec.calls())

	m.Update(dismissableItem("x"))
	m.SetLowPowerMode(true)
	m.RemoveActive()
	assert.Equal(t, 1, a.updated)
	assert.Equal(t, []bool{true}, b.lowPower)
	assert.Equal(t, 1, b.removed)
}

func TestMulti_PanickingPresenterIsSkipped(t *testing.T) {
	t.Parallel()
	bad, good := &stubPresenter{panics: true}, &stubPresenter{}
	m := NewMulti(logx.Nop(), bad, good)

	assert.NotPanics(t, func() { m.Present(dismissableItem("hi"), func(toast.DismissalMethod) {}) })
	assert.Equal(t, 1, good.presented)
}

func TestViewOf(t *testing.T) {
	t.Parallel()
	it := dismissableItem("saved")
	it.Options.Action = &toast.Action{Title: "Undo"}
	it.Options.Priority = toast.PriorityElevated

	v := ViewOf(it)
	assert.Equal(t, it.ID.String(), v.ID)
	assert.Equal(t, "elevated", v.Priority)
	assert.Equal(t, int64(3000), v.DurationMS)
	assert.Equal(t, "Undo", v.Action)
	assert.True(t, v.Dismissable)
}

func dialHub(t *testing.T, h *WebSocket) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocket_PresentAndClientDismiss(t *testing.T) {
	t.Parallel()
	h := NewWebSocket(logx.Nop(), nil)
	defer h.Close()
	conn := dialHub(t, h)

	rec := &dismissRecorder{}
	it := dismissableItem("hello")
	h.Present(it, rec.fn)

	f := readFrame(t, conn)
	assert.Equal(t, OpPresent, f.Op)
	require.NotNil(t, f.Toast)
	assert.Equal(t, "hello", f.Toast.Message)

	require.NoError(t, conn.WriteJSON(Frame{Op: OpDismiss, ID: it.ID.String()}))
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, toast.DismissUserInteraction, rec.calls()[0])

	// A second dismiss for the same presentation is ignored.
	require.NoError(t, conn.WriteJSON(Frame{Op: OpDismiss, ID: it.ID.String()}))
	h.RemoveActive()
	f = readFrame(t, conn)
	assert.Equal(t, OpRemove, f.Op)
	assert.Equal(t, it.ID.String(), f.ID)
	assert.Len(t, rec.calls(), 1)
}

func TestWebSocket_LateClientSeesCurrentToast(t *testing.T) {
	t.Parallel()
	h := NewWebSocket(logx.Nop(), nil)
	defer h.Close()
	h.SetLowPowerMode(true)
	h.Present(dismissableItem("already up"), func(toast.DismissalMethod) {})

	conn := dialHub(t, h)
	f := readFrame(t, conn)
	assert.Equal(t, OpPower, f.Op)
	require.NotNil(t, f.LowPower)
	assert.True(t, *f.LowPower)

	f = readFrame(t, conn)
	assert.Equal(t, OpPresent, f.Op)
	assert.Equal(t, "already up", f.Toast.Message)
}

func TestWebSocket_NonDismissableIgnoresClient(t *testing.T) {
	t.Parallel()
	h := NewWebSocket(logx.Nop(), nil)
	defer h.Close()
	rec := &dismissRecorder{}
	it := toast.NewItem("sticky", toast.KindWarning, toast.DefaultOptions())
	h.Present(it, rec.fn)

	h.handleClientFrame(Frame{Op: OpDismiss, ID: it.ID.String()})
	h.handleClientFrame(Frame{Op: OpAction, ID: it.ID.String()})
	h.handleClientFrame(Frame{Op: "bogus", ID: it.ID.String()})
	assert.Empty(t, rec.calls())
}

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []string
	edited  []string
	deleted int
	opts    []*tele.SendOptions
	sendErr error
	nextID  int
}

func (f *fakeTelegram) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, what.(string))
	if len(opts) > 0 {
		f.opts = append(f.opts, opts[0].(*tele.SendOptions))
	}
	return &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: 1}}, nil
}

func (f *fakeTelegram) Edit(_ tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, what.(string))
	return &tele.Message{}, nil
}

func (f *fakeTelegram) Delete(tele.Editable) error {
	f.mu.Lock()
	f.deleted++
	f.mu.Unlock()
	return nil
}

func TestTelegram_ReconcileSendEditDelete(t *testing.T) {
	t.Parallel()
	api := &fakeTelegram{}
	tg := newTelegram(TelegramConfig{ChatID: 1}, api, logx.Nop())

	it := dismissableItem("first")
	it.Options.Action = &toast.Action{Title: "Open"}
	tg.Present(it, func(toast.DismissalMethod) {})
	tg.reconcile()
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "first")
	rm := api.opts[0].ReplyMarkup
	require.NotNil(t, rm)
	require.Len(t, rm.InlineKeyboard, 1)
	assert.Len(t, rm.InlineKeyboard[0], 2)

	// No change, no call.
	tg.reconcile()
	assert.Len(t, api.sent, 1)

	upd := it
	upd.Message = "first (2)"
	tg.Update(upd)
	tg.reconcile()
	assert.Equal(t, []string{"ℹ️ first (2)"}, api.edited)

	tg.Present(dismissableItem("second"), func(toast.DismissalMethod) {})
	tg.reconcile()
	assert.Equal(t, 1, api.deleted)
	assert.Len(t, api.sent, 2)

	tg.RemoveActive()
	tg.reconcile()
	assert.Equal(t, 2, api.deleted)
}

func TestTelegram_LowPowerSilencesNotifications(t *testing.T) {
	t.Parallel()
	api := &fakeTelegram{}
	tg := newTelegram(TelegramConfig{ChatID: 1}, api, logx.Nop())
	tg.SetLowPowerMode(true)
	tg.Present(dismissableItem("quiet"), func(toast.DismissalMethod) {})
	tg.reconcile()
	require.Len(t, api.opts, 1)
	assert.True(t, api.opts[0].DisableNotification)
}

func TestTelegram_SendFailureIsNotRetriedForSameVersion(t *testing.T) {
	t.Parallel()
	api := &fakeTelegram{sendErr: errors.New("network down")}
	tg := newTelegram(TelegramConfig{ChatID: 1}, api, logx.Nop())
	tg.Present(dismissableItem("x"), func(toast.DismissalMethod) {})
	tg.reconcile()
	api.sendErr = nil
	tg.reconcile()
	assert.Empty(t, api.sent)
}

func TestTelegram_Callbacks(t *testing.T) {
	t.Parallel()
	tg := newTelegram(TelegramConfig{ChatID: 1}, &fakeTelegram{}, logx.Nop())

	ran := 0
	it := dismissableItem("deploy done")
	it.Options.Action = &toast.Action{Title: "View", Handler: func() { ran++ }}
	rec := &dismissRecorder{}
	tg.Present(it, rec.fn)

	assert.Equal(t, "", tg.onCallback("garbage"))
	assert.Equal(t, "Already gone", tg.onCallback(callbackData(cbDismiss, toast.NewID())))
	assert.Equal(t, "View", tg.onCallback(callbackData(cbAction, it.ID)))
	assert.Equal(t, 1, ran)
	assert.Equal(t, []toast.DismissalMethod{toast.DismissUserInteraction}, rec.calls())

	assert.Equal(t, "Already gone", tg.onCallback(callbackData(cbDismiss, it.ID)))
	assert.Len(t, rec.calls(), 1)
}

func TestTelegram_ActionPanicIsContained(t *testing.T) {
	t.Parallel()
	tg := newTelegram(TelegramConfig{ChatID: 1}, &fakeTelegram{}, logx.Nop())
	it := dismissableItem("x")
	it.Options.Action = &toast.Action{Title: "Go", Handler: func() { panic("handler") }}
	rec := &dismissRecorder{}
	tg.Present(it, rec.fn)

	assert.NotPanics(t, func() { tg.onCallback(callbackData(cbAction, it.ID)) })
	assert.Len(t, rec.calls(), 1)
}

func TestParseCallbackData(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in     string
		action string
		id     toast.ID
		ok     bool
	}{
		{"toast:dismiss:abc", "dismiss", "abc", true},
		{" toast:action:a:b ", "action", "a:b", true},
		{"toast:dismiss:", "", "", false},
		{"other:dismiss:abc", "", "", false},
		{"toast", "", "", false},
	}
	for _, tc := range cases {
		action, id, ok := parseCallbackData(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.action, action, tc.in)
		assert.Equal(t, tc.id, id, tc.in)
	}
}

func TestNewTelegram_RequiresTokenAndChat(t *testing.T) {
	t.Parallel()
	_, err := NewTelegram(TelegramConfig{ChatID: 1}, logx.Nop())
	assert.Error(t, err)
	_, err = NewTelegram(TelegramConfig{Token: "x"}, logx.Nop())
	assert.Error(t, err)
}
