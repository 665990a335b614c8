package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"murmur/internal/config"
	"murmur/internal/logging"
)

// Event describes one observed connectivity transition.
type Event struct {
	Online bool
	At     time.Time
}

// Watcher polls the inference endpoint and fans out transitions.
type Watcher struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu          sync.Mutex
	online      bool
	everProbed  bool
	subscribers []chan Event
}

// Option adjusts watcher construction.
type Option func(*Watcher)

// WithHTTPClient overrides the probe HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Watcher) {
		if client != nil {
			w.client = client
		}
	}
}

// WithInterval overrides the probe interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// NewWatcher builds a connectivity watcher from configuration.
func NewWatcher(cfg *config.Config, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		probeURL: cfg.Sync.ProbeURL,
		interval: cfg.ProbeInterval(),
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logging.NewComponentLogger(logger, "connectivity"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Online reports the most recent probe result. Before the first probe the
// watcher assumes the link is up so startup work is not held back.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.everProbed {
		return true
	}
	return w.online
}

// Subscribe returns a channel receiving connectivity transitions. The channel
// is buffered; a slow consumer drops events rather than blocking the watcher.
func (w *Watcher) Subscribe() <-chan Event {
	ch := make(chan Event, 4)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()
	return ch
}

// Run probes until the context is cancelled. An immediate probe happens on
// entry so subscribers learn the initial state quickly.
func (w *Watcher) Run(ctx context.Context) {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

// Probe forces a single connectivity check and returns the observed state.
func (w *Watcher) Probe(ctx context.Context) bool {
	return w.probe(ctx)
}

func (w *Watcher) probe(ctx context.Context) bool {
	online := w.reachable(ctx)

	w.mu.Lock()
	changed := !w.everProbed || online != w.online
	w.everProbed = true
	w.online = online
	subscribers := make([]chan Event, len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	if !changed {
		return online
	}

	if online {
		w.logger.Info("connectivity restored", logging.String("probe_url", w.probeURL))
	} else {
		w.logger.Warn("connectivity lost", logging.String("probe_url", w.probeURL))
	}

	event := Event{Online: online, At: time.Now().UTC()}
	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return online
}

func (w *Watcher) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
