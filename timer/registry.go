package timer

import (
	"sync"
	"time"

	"github.com/balancednetwork/xcall-tracker/logging"
)

// Registry schedules named repeating jobs, guaranteeing at most one
// active timer per id. Starting an id that is already running cancels the
// previous timer first.
type Registry struct {
	mu     sync.Mutex
	logger logging.Logger
	stops  map[string]chan struct{}
}

func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		logger: logger,
		stops:  make(map[string]chan struct{}),
	}
}

func (r *Registry) Start(id string, interval time.Duration, fn func()) {
	r.mu.Lock()
	if stop, ok := r.stops[id]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	r.stops[id] = stop
	r.mu.Unlock()

	r.logger.WithField("timer_id", id).Debug("starting timer")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (r *Registry) Stop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.stops[id]; ok {
		close(stop)
		delete(r.stops, id)
		r.logger.WithField("timer_id", id).Debug("stopped timer")
	}
}

func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, stop := range r.stops {
		close(stop)
		delete(r.stops, id)
	}
}

func (r *Registry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stops[id]
	return ok
}
