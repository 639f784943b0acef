package presenter

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "toastd/internal/runtime/supervisor"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// TelegramConfig targets a single chat (optionally a forum topic).
type TelegramConfig struct {
	Token       string
	ChatID      int64
	ThreadID    int
	PollTimeout time.Duration
}

// telegramAPI is the part of *tele.Bot the presenter uses.
type telegramAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

const (
	cbPrefix  = "toast"
	cbDismiss = "dismiss"
	cbAction  = "action"
)

func callbackData(action string, id toast.ID) string {
	return cbPrefix + ":" + action + ":" + id.String()
}

func parseCallbackData(data string) (action string, id toast.ID, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) != 3 || parts[0] != cbPrefix || parts[2] == "" {
		return "", "", false
	}
	return parts[1], toast.ID(parts[2]), true
}

// Telegram mirrors the active toast as a chat message with inline buttons.
// Bot API calls run on a background worker that reconciles the chat with
// the latest desired state, so Present and RemoveActive never block and a
// burst of changes collapses into the final one.
type Telegram struct {
	cfg TelegramConfig
	log logx.Logger
	api telegramAPI
	bot *tele.Bot

	mu        sync.Mutex
	want      *toast.Item
	wantVer   uint64
	onDismiss func(toast.DismissalMethod)
	lowPower  bool

	// owned by the worker
	shown    *tele.Message
	shownID  toast.ID
	shownVer uint64

	kick chan struct{}

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	t := newTelegram(cfg, b, log)
	t.bot = b
	b.Handle(tele.OnCallback, t.handleCallback)
	return t, nil
}

func newTelegram(cfg TelegramConfig, api telegramAPI, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{cfg: cfg, log: log, api: api, kick: make(chan struct{}, 1)}
}

// Start runs the reconcile worker and, when backed by a real bot, the
// long-poll loop for button callbacks.
func (t *Telegram) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.sup != nil {
		return
	}
	t.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(t.log),
		rtsup.WithCancelOnError(false),
	)
	t.sup.Go0("telegram.reconcile", t.run)
	if t.bot == nil {
		return
	}
	bot := t.bot
	t.sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		bot.Stop()
	})
	// Start returns only after Stop; restart it if it exits early.
	t.sup.GoRestart0("telebot.poll", func(context.Context) {
		t.log.Info("polling started")
		bot.Start()
		t.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
}

// Stop cancels the worker and waits up to ctx for it to exit.
func (t *Telegram) Stop(ctx context.Context) error {
	t.runMu.Lock()
	sup := t.sup
	t.sup = nil
	t.runMu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()
	return sup.Wait(ctx)
}

// Supervisor exposes the worker supervisor for health reporting.
func (t *Telegram) Supervisor() *rtsup.Supervisor {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.sup
}

func (t *Telegram) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.clear()
			return
		case <-t.kick:
			t.reconcile()
		}
	}
}

func (t *Telegram) wake() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Telegram) Present(it toast.Item, onDismiss func(toast.DismissalMethod)) {
	t.mu.Lock()
	t.want = &it
	t.wantVer++
	t.onDismiss = onDismiss
	t.mu.Unlock()
	t.wake()
}

func (t *Telegram) Update(it toast.Item) {
	t.mu.Lock()
	if t.want == nil || t.want.ID != it.ID {
		t.mu.Unlock()
		return
	}
	t.want = &it
	t.wantVer++
	t.mu.Unlock()
	t.wake()
}

func (t *Telegram) RemoveActive() {
	t.mu.Lock()
	t.want = nil
	t.wantVer++
	t.onDismiss = nil
	t.mu.Unlock()
	t.wake()
}

// SetLowPowerMode silences chat notifications while enabled.
func (t *Telegram) SetLowPowerMode(enabled bool) {
	t.mu.Lock()
	t.lowPower = enabled
	t.mu.Unlock()
}

// reconcile brings the chat in line with the desired toast.
func (t *Telegram) reconcile() {
	t.mu.Lock()
	var want *toast.Item
	if t.want != nil {
		cp := *t.want
		want = &cp
	}
	ver := t.wantVer
	silent := t.lowPower
	t.mu.Unlock()

	if ver == t.shownVer {
		return
	}
	if want == nil {
		t.clear()
		t.shownVer = ver
		return
	}

	if t.shown != nil && t.shownID == want.ID {
		if _, err := t.api.Edit(t.shown, t.render(*want), t.sendOptions(*want, silent)); err != nil {
			t.log.Warn("telegram edit failed", logx.String("id", want.ID.String()), logx.Err(err))
		}
		t.shownVer = ver
		return
	}

	t.clear()
	msg, err := t.api.Send(&tele.Chat{ID: t.cfg.ChatID}, t.render(*want), t.sendOptions(*want, silent))
	if err != nil {
		t.log.Warn("telegram send failed", logx.String("id", want.ID.String()), logx.Err(err))
		t.shownVer = ver
		return
	}
	t.shown = msg
	t.shownID = want.ID
	t.shownVer = ver
}

func (t *Telegram) clear() {
	if t.shown == nil {
		return
	}
	if err := t.api.Delete(t.shown); err != nil {
		t.log.Debug("telegram delete failed", logx.Err(err))
	}
	t.shown = nil
	t.shownID = ""
}

func (t *Telegram) render(it toast.Item) string {
	return kindIcon(it.Kind) + " " + it.Message
}

func (t *Telegram) sendOptions(it toast.Item, silent bool) *tele.SendOptions {
	opts := &tele.SendOptions{
		ThreadID:              t.cfg.ThreadID,
		DisableWebPagePreview: true,
		DisableNotification:   silent,
	}
	var row []tele.Btn
	if it.Options.Action != nil && it.Options.Action.Title != "" {
		row = append(row, tele.Btn{Text: it.Options.Action.Title, Data: callbackData(cbAction, it.ID)})
	}
	if it.Options.AllowsUserDismiss {
		row = append(row, tele.Btn{Text: "Dismiss", Data: callbackData(cbDismiss, it.ID)})
	}
	if len(row) > 0 {
		rm := &tele.ReplyMarkup{}
		rm.Inline(rm.Row(row...))
		opts.ReplyMarkup = rm
	}
	return opts
}

func (t *Telegram) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	text := t.onCallback(cb.Data)
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// onCallback applies a button press and returns the text shown to the user.
func (t *Telegram) onCallback(data string) string {
	action, id, ok := parseCallbackData(data)
	if !ok {
		return ""
	}
	t.mu.Lock()
	if t.want == nil || t.want.ID != id || t.onDismiss == nil {
		t.mu.Unlock()
		return "Already gone"
	}
	it := *t.want
	switch {
	case action == cbAction && it.Options.Action != nil:
	case action == cbDismiss && it.Options.AllowsUserDismiss:
	default:
		t.mu.Unlock()
		return ""
	}
	onDismiss := t.onDismiss
	t.onDismiss = nil
	t.mu.Unlock()

	if action == cbAction && it.Options.Action.Handler != nil {
		runAction(t.log, it)
	}
	onDismiss(toast.DismissUserInteraction)
	if action == cbAction {
		return it.Options.Action.Title
	}
	return "Dismissed"
}

// runAction invokes an item's action handler, containing panics.
func runAction(log logx.Logger, it toast.Item) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("toast action panicked", logx.String("id", it.ID.String()), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	it.Options.Action.Handler()
}
