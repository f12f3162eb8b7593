package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sanasol-ws/dualauth/internal/trust"
)

// DefaultJWKSRefreshInterval is how often the cached key set is rebuilt.
const DefaultJWKSRefreshInterval = time.Minute

// JWKSHandler serves the merged key set: the local signing key plus live
// foreign keys. The document is cached and refreshed in the background;
// when a rebuild fails the last good document keeps being served, so key
// resolution hiccups never take the endpoint down.
type JWKSHandler struct {
	keyring         *trust.Keyring
	refreshInterval time.Duration
	logger          *slog.Logger

	mu     sync.RWMutex
	cached []byte

	stop    chan struct{}
	stopped sync.Once
}

// JWKSHandlerConfig configures the JWKS handler
type JWKSHandlerConfig struct {
	// Keyring supplies the merged key set
	Keyring *trust.Keyring

	// RefreshInterval between cache rebuilds (defaults to
	// DefaultJWKSRefreshInterval)
	RefreshInterval time.Duration

	// Logger is an optional structured logger (defaults to slog.Default)
	Logger *slog.Logger
}

// NewJWKSHandler creates a JWKS handler
func NewJWKSHandler(cfg JWKSHandlerConfig) *JWKSHandler {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultJWKSRefreshInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JWKSHandler{
		keyring:         cfg.Keyring,
		refreshInterval: interval,
		logger:          logger,
		stop:            make(chan struct{}),
	}
}

// Start populates the cache and begins background refresh
func (h *JWKSHandler) Start(ctx context.Context) {
	if err := h.refresh(ctx); err != nil {
		h.logger.Warn("initial jwks build failed, will retry", "error", err)
	}

	go func() {
		ticker := time.NewTicker(h.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := h.refresh(ctx); err != nil {
					h.logger.Warn("jwks refresh failed, serving stale set", "error", err)
				}
			case <-h.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the background refresh
func (h *JWKSHandler) Stop() {
	h.stopped.Do(func() { close(h.stop) })
}

// ServeHTTP serves the cached document, building it on demand when the
// cache is still empty
func (h *JWKSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	cached := h.cached
	h.mu.RUnlock()

	if cached == nil {
		if err := h.refresh(r.Context()); err != nil {
			h.logger.Error("jwks build failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: "key set unavailable"})
			return
		}
		h.mu.RLock()
		cached = h.cached
		h.mu.RUnlock()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cached)
}

func (h *JWKSHandler) refresh(ctx context.Context) error {
	set, err := h.keyring.MergedKeySet(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(set)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cached = doc
	h.mu.Unlock()
	return nil
}
