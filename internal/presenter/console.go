package presenter

import (
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Console renders toasts as log lines. It never dismisses on its own.
type Console struct {
	log logx.Logger
}

func NewConsole(log logx.Logger) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{log: log}
}

func (c *Console) Present(it toast.Item, _ func(toast.DismissalMethod)) {
	c.log.Info(kindIcon(it.Kind)+" "+it.Message,
		logx.String("id", it.ID.String()),
		logx.String("kind", string(it.Kind)),
		logx.String("priority", it.Options.Priority.String()),
		logx.Duration("duration", it.Options.Duration),
	)
}

func (c *Console) Update(it toast.Item) {
	c.log.Info(kindIcon(it.Kind)+" "+it.Message, logx.String("id", it.ID.String()), logx.Bool("updated", true))
}

func (c *Console) RemoveActive() { c.log.Debug("toast removed") }

func (c *Console) SetLowPowerMode(enabled bool) {
	c.log.Info("low power mode", logx.Bool("enabled", enabled))
}
