package admin

import (
	"context"
	"encoding/json"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"orderpulse/internal/lifecycle"
	"orderpulse/internal/task/scheduler"
	"orderpulse/pkg/logx"
)

// Lifecycle is the part of the lifecycle service exposed over HTTP.
type Lifecycle interface {
	RunDailyStatusCheck(ctx context.Context) (lifecycle.Report, error)
	SendHourlyReminders(ctx context.Context) (lifecycle.Report, error)
	Status() lifecycle.Status
}

type Deps struct {
	Lifecycle Lifecycle
	// Scheduler may be nil when triggers are not installed (one-shot mode).
	Scheduler func() scheduler.Snapshot
	// Ping checks the store; nil means healthy.
	Ping func(ctx context.Context) error
	// Pending counts undelivered notification recipients; optional.
	Pending func(ctx context.Context) (int, error)
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Time              time.Time           `json:"time"`
	Lifecycle         lifecycle.Status    `json:"lifecycle"`
	Scheduler         *scheduler.Snapshot `json:"scheduler,omitempty"`
	PendingDeliveries *int                `json:"pending_deliveries,omitempty"`
}

// RunResponse is the body of POST /run/{daily,hourly}.
type RunResponse struct {
	Report lifecycle.Report `json:"report"`
	Error  string           `json:"error,omitempty"`
}

// NewHandler builds the admin mux. Every route requires the bearer token
// when one is configured.
func NewHandler(cfg Config, deps Deps, log logx.Logger) http.Handler {
	h := &handler{deps: deps, log: log}
	wrap := func(fn http.HandlerFunc) http.HandlerFunc { return withAuth(cfg.Token, fn) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", wrap(h.healthz))
	mux.HandleFunc("GET /status", wrap(h.status))
	mux.HandleFunc("POST /run/daily", wrap(h.run(lifecycle.JobDaily, deps.Lifecycle.RunDailyStatusCheck)))
	mux.HandleFunc("POST /run/hourly", wrap(h.run(lifecycle.JobHourly, deps.Lifecycle.SendHourlyReminders)))

	if cfg.Pprof {
		prefix := normalizePrefix(cfg.PprofPrefix)
		base := strings.TrimSuffix(prefix, "/")
		mux.HandleFunc(prefix, wrap(pprofIndexAt(prefix)))
		mux.HandleFunc(base+"/cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc(base+"/profile", wrap(hpprof.Profile))
		mux.HandleFunc(base+"/symbol", wrap(hpprof.Symbol))
		mux.HandleFunc(base+"/trace", wrap(hpprof.Trace))
	}
	return mux
}

type handler struct {
	deps Deps
	log  logx.Logger
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ping != nil {
		if err := h.deps.Ping(r.Context()); err != nil {
			h.log.Warn("health check failed", logx.Err(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Time: time.Now().UTC(), Lifecycle: h.deps.Lifecycle.Status()}
	if h.deps.Scheduler != nil {
		snap := h.deps.Scheduler()
		resp.Scheduler = &snap
	}
	if h.deps.Pending != nil {
		if n, err := h.deps.Pending(r.Context()); err == nil {
			resp.PendingDeliveries = &n
		} else {
			h.log.Warn("pending deliveries count failed", logx.Err(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// run invokes a lifecycle job synchronously. The run is detached from the
// request so a dropped client does not abort it half way.
func (h *handler) run(job string, fn func(context.Context) (lifecycle.Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.log.Info("manual run requested", logx.String("job", job), logx.String("remote", r.RemoteAddr))
		rep, err := fn(context.WithoutCancel(r.Context()))
		resp := RunResponse{Report: rep}
		code := http.StatusOK
		switch {
		case err != nil:
			resp.Error = err.Error()
			code = http.StatusInternalServerError
		case rep.Skipped:
			code = http.StatusConflict
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "/debug/pprof/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// pprofIndexAt rewrites the path so pprof.Index works under a custom prefix.
func pprofIndexAt(prefix string) http.HandlerFunc {
	canon := normalizePrefix(prefix)
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/debug/pprof/" + strings.TrimPrefix(r.URL.Path, canon)
		hpprof.Index(w, r2)
	}
}
