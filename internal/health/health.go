// Package health serves the operator probes of the radio bot.
//
// /healthz answers 200 for as long as the process can serve HTTP. /readyz
// runs every registered [Checker] in parallel and answers 503 when any of
// them fails. Both endpoints reply with a JSON [Report].
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when it is usable and
// must give up once ctx is done.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckResult is the outcome of one [Checker] within a [Report].
type CheckResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

// Report is the body of both probe endpoints.
type Report struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Healthy reports whether every check in r passed.
func (r Report) Healthy() bool { return r.Status == "ok" }

// Handler holds a fixed set of checkers.
type Handler struct {
	checkers []Checker
	started  time.Time
	now      func() time.Time
}

// New returns a Handler evaluating checkers on each readiness probe.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
		now:      time.Now,
	}
}

func (h *Handler) uptime() string {
	return h.now().Sub(h.started).Round(time.Second).String()
}

// Evaluate runs all checkers concurrently, each under its own
// [checkTimeout] deadline derived from ctx.
func (h *Handler) Evaluate(ctx context.Context) Report {
	rep := Report{Status: "ok", Uptime: h.uptime()}
	if len(h.checkers) == 0 {
		return rep
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	rep.Checks = make(map[string]CheckResult, len(h.checkers))
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			begin := time.Now()
			err := c.Check(cctx)
			res := CheckResult{OK: err == nil, Elapsed: time.Since(begin).Round(time.Microsecond).String()}
			if err != nil {
				res.Error = err.Error()
			}

			mu.Lock()
			rep.Checks[c.Name] = res
			if err != nil {
				rep.Status = "fail"
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, Report{Status: "ok", Uptime: h.uptime()})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.Evaluate(r.Context()))
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, rep Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if !rep.Healthy() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
