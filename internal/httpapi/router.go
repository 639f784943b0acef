package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toastd/internal/eventbus"
	"toastd/internal/runtime/supervisor"
	"toastd/internal/storage"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Scheduler is the caller API of toast.Manager.
type Scheduler interface {
	NewItem(message string, kind toast.Kind, opts toast.Options) toast.Item
	Show(it toast.Item) toast.Admission
	Dismiss(id toast.ID) bool
	DismissAll() int
	HandleAppDidEnterBackground(ctx context.Context) error
	HandleAppWillEnterForeground(ctx context.Context) error
	SetLowPowerMode(enabled bool) bool
	PerformMemoryCleanup()
	Status() toast.Status
}

// HealthReport is the body of GET /v1/health.
type HealthReport struct {
	OK               bool                          `json:"ok"`
	Version          string                        `json:"version,omitempty"`
	Uptime           string                        `json:"uptime"`
	State            string                        `json:"state"`
	Queued           int                           `json:"queued"`
	WebSocketClients int                           `json:"websocket_clients"`
	Supervisor       supervisor.SupervisorSnapshot `json:"supervisor"`
	BusDropped       uint64                        `json:"bus_dropped"`
}

// Deps wires the router. Only Toasts is required.
type Deps struct {
	Toasts Scheduler
	Log    logx.Logger
	// Audit records mutating calls. Nil disables auditing.
	Audit storage.Store
	// Events receives toast.action events. May be nil.
	Events eventbus.Bus
	// WebSocket serves GET /v1/ws. Nil disables the route.
	WebSocket http.Handler
	// Gatherer serves GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Health   func() HealthReport
	// Token, when set, is required as a bearer token (or ?token= on the
	// websocket route) everywhere except /v1/health.
	Token string
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool
	// LifecycleTimeout bounds snapshot store calls made by the lifecycle
	// routes.
	LifecycleTimeout time.Duration
}

type api struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.LifecycleTimeout <= 0 {
		d.LifecycleTimeout = 10 * time.Second
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/v1/health", a.health)

	r.Group(func(r chi.Router) {
		r.Use(a.auth)

		r.Route("/v1", func(r chi.Router) {
			r.Route("/toasts", func(r chi.Router) {
				r.With(middleware.AllowContentType("application/json")).Post("/", a.showToast)
				r.Delete("/", a.dismissAll)
				r.Delete("/{id}", a.dismissToast)
			})
			r.Post("/lifecycle/background", a.background)
			r.Post("/lifecycle/foreground", a.foreground)
			r.With(middleware.AllowContentType("application/json")).Post("/power", a.power)
			r.Post("/maintenance/memory-cleanup", a.memoryCleanup)
			r.Get("/state", a.state)
			if d.WebSocket != nil {
				r.Handle("/ws", d.WebSocket)
			}
		})

		if d.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
		}
		if d.Pprof {
			r.Mount("/debug", middleware.Profiler())
		}
	})
	return r
}

func (a *api) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.Log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Int("bytes", ww.BytesWritten()),
			logx.Duration("took", time.Since(start)),
			logx.String("req_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *api) auth(next http.Handler) http.Handler {
	if a.Token == "" {
		return next
	}
	want := []byte(a.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// audit records an operator action. Failures are logged, never surfaced.
func (a *api) audit(r *http.Request, action, target string, err error) {
	if a.Audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:     time.Now(),
		Actor:  r.RemoteAddr,
		Action: action,
		Target: target,
		OK:     err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := a.Audit.AppendAudit(r.Context(), e); aerr != nil && !errors.Is(aerr, storage.ErrClosed) {
		a.Log.Debug("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func (a *api) showToast(w http.ResponseWriter, r *http.Request) {
	var req ToastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it := a.Toasts.NewItem(req.Message, kind, opts)
	if title := strings.TrimSpace(req.Action); title != "" {
		it.Options.Action = &toast.Action{Title: title, Handler: a.actionHandler(it.ID, title)}
	}

	adm := a.Toasts.Show(it)
	a.audit(r, "toast.show", adm.ID.String(), nil)
	writeJSON(w, http.StatusAccepted, admissionResponse(adm))
}

func (a *api) actionHandler(id toast.ID, title string) func() {
	bus := a.Events
	if bus == nil {
		return nil
	}
	return func() {
		bus.Publish(eventbus.Event{Type: EventAction, Data: ActionEvent{ID: id.String(), Action: title}})
	}
}

func (a *api) dismissToast(w http.ResponseWriter, r *http.Request) {
	id := toast.ID(chi.URLParam(r, "id"))
	if !a.Toasts.Dismiss(id) {
		a.audit(r, "toast.dismiss", id.String(), errors.New("not found"))
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "toast not found"})
		return
	}
	a.audit(r, "toast.dismiss", id.String(), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) dismissAll(w http.ResponseWriter, r *http.Request) {
	n := a.Toasts.DismissAll()
	a.audit(r, "toast.dismiss_all", "", nil)
	writeJSON(w, http.StatusOK, CountResponse{Dismissed: n})
}

func (a *api) background(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.LifecycleTimeout)
	defer cancel()
	err := a.Toasts.HandleAppDidEnterBackground(ctx)
	a.audit(r, "lifecycle.background", "", err)
	if err != nil {
		// The scheduler already cleared the screen; only persistence failed.
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(a.Toasts.Status()))
}

func (a *api) foreground(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.LifecycleTimeout)
	defer cancel()
	err := a.Toasts.HandleAppWillEnterForeground(ctx)
	a.audit(r, "lifecycle.foreground", "", err)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(a.Toasts.Status()))
}

func (a *api) power(w http.ResponseWriter, r *http.Request) {
	var req PowerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	applied := a.Toasts.SetLowPowerMode(req.LowPower)
	a.audit(r, "power.set", boolString(req.LowPower), nil)
	writeJSON(w, http.StatusOK, PowerResponse{LowPower: req.LowPower, Applied: applied})
}

func boolString(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (a *api) memoryCleanup(w http.ResponseWriter, r *http.Request) {
	a.Toasts.PerformMemoryCleanup()
	a.audit(r, "maintenance.memory_cleanup", "", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse(a.Toasts.Status()))
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	rep := HealthReport{OK: true}
	if a.Health != nil {
		rep = a.Health()
	}
	status := http.StatusOK
	if !rep.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}
