// Package application contains use-case orchestration services.
package application

import (
	"sync"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// RuntimeConfig holds the mutable configuration the crawler reads on every
// request: the active cookie and the pacing parameters. It is the explicit
// configuration handle threaded through constructors; there is no
// process-wide state. A mutex guards both fields so settings updates take
// effect without restarting the application.
type RuntimeConfig struct {
	mu     sync.RWMutex
	cookie *model.Cookie
	params model.CrawlerParams
}

// NewRuntimeConfig creates a RuntimeConfig with the given initial parameters
// and no cookie.
func NewRuntimeConfig(params model.CrawlerParams) *RuntimeConfig {
	return &RuntimeConfig{params: params}
}

// Cookie returns the active cookie, or nil when none is set.
func (c *RuntimeConfig) Cookie() *model.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cookie
}

// SetCookie parses and validates raw and installs it as the active cookie.
// On validation failure the active cookie is left unchanged and a
// *model.ValidationError is returned.
func (c *RuntimeConfig) SetCookie(raw string) error {
	cookie, err := model.ParseCookie(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = cookie
	return nil
}

// ClearCookie removes the active cookie.
func (c *RuntimeConfig) ClearCookie() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = nil
}

// HasCookie returns true if an active cookie is currently held.
func (c *RuntimeConfig) HasCookie() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cookie != nil
}

// Params returns the current pacing parameters.
func (c *RuntimeConfig) Params() model.CrawlerParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// SetParams replaces all three pacing parameters as one batch. The next
// caller of Params() receives the new values.
func (c *RuntimeConfig) SetParams(params model.CrawlerParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params
}
