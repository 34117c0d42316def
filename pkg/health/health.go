// Package health serves liveness and readiness probes backed by periodic
// checks.
//
// A check flips to unhealthy only after failing FailureThreshold times in a
// row and back to healthy after SuccessThreshold consecutive passes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Check reports a problem with a dependency, or nil when it is healthy.
type Check func(ctx context.Context) error

// Kind separates liveness from readiness checks.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Option tunes a registered check.
type Option func(*probe)

// WithTimeout bounds a single check run. The default is one second.
func WithTimeout(d time.Duration) Option {
	return func(p *probe) { p.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check unhealthy
// and how many consecutive passes restore it. Defaults are 3 and 1.
func WithThresholds(failure, success int) Option {
	return func(p *probe) {
		p.failureThreshold = failure
		p.successThreshold = success
	}
}

type probe struct {
	name             string
	timeout          time.Duration
	check            Check
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the goroutine running the probe.
	fails int
	oks   int
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.successThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) problem() string {
	if p.healthy.Load() {
		return ""
	}
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

// Registry holds the checks of one service.
type Registry struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes map[Kind][]*probe
}

// New returns an empty Registry. It reports not ready until SetReady(true).
func New() *Registry {
	return &Registry{probes: map[Kind][]*probe{}}
}

// Register adds a check. Checks start healthy. Register before Run.
func (r *Registry) Register(kind Kind, name string, check Check, opts ...Option) {
	p := &probe{
		name:             name,
		timeout:          time.Second,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)

	r.mu.Lock()
	r.probes[kind] = append(r.probes[kind], p)
	r.mu.Unlock()
}

func (r *Registry) snapshot(kinds ...Kind) []*probe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*probe
	for _, k := range kinds {
		out = append(out, r.probes[k]...)
	}
	return out
}

// Run executes every check now and then on each interval tick until ctx is
// cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	var wg sync.WaitGroup
	for _, p := range r.snapshot(Liveness, Readiness) {
		wg.Add(1)
		go func(p *probe) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
	wg.Wait()
	return nil
}

// SetReady marks the service as able (or no longer able) to take traffic.
func (r *Registry) SetReady(ready bool) {
	r.ready.Store(ready)
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (r *Registry) Ready() bool {
	return r.ready.Load() && len(problems(r.snapshot(Readiness))) == 0
}

func problems(probes []*probe) map[string]string {
	out := map[string]string{}
	for _, p := range probes {
		if msg := p.problem(); msg != "" {
			out[p.name] = msg
		}
	}
	return out
}

// Handler serves the probe of the given kind: 200 {"status":"ok"} or 503
// {"status":"unhealthy","checks":{...}}.
func (r *Registry) Handler(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		failed := problems(r.snapshot(kind))
		if kind == Readiness && !r.ready.Load() {
			failed["_readiness"] = "service is not ready"
		}
		write(w, failed)
	}
}

func write(w http.ResponseWriter, failed map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	status := http.StatusOK
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
