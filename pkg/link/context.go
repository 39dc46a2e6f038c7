package link

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/witlink/pkg/observability"
	"github.com/matzehuels/witlink/pkg/profile"
	"github.com/matzehuels/witlink/pkg/registry"
)

// Context carries everything one composition run needs. It is built per
// run and never shared between runs; nothing in this package keeps state
// outside of it.
type Context struct {
	Registry  *registry.Registry
	Overrides OverrideTable
	Profiles  profile.Selector
	Logger    *log.Logger
	Hooks     observability.Hooks
	// RunID tags log lines and hook events. It never appears in outputs.
	RunID string

	base context.Context
}

// Option configures a Context.
type Option func(*Context)

// WithOverrides sets the override table.
func WithOverrides(t OverrideTable) Option { return func(c *Context) { c.Overrides = t } }

// WithProfiles sets the profile selector.
func WithProfiles(s profile.Selector) Option { return func(c *Context) { c.Profiles = s } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Context) { c.Logger = l } }

// WithHooks sets the observability hooks.
func WithHooks(h observability.Hooks) Option { return func(c *Context) { c.Hooks = h } }

// WithBaseContext sets the context passed to hooks.
func WithBaseContext(ctx context.Context) Option { return func(c *Context) { c.base = ctx } }

// NewContext creates the context for one run over reg.
func NewContext(reg *registry.Registry, opts ...Option) *Context {
	c := &Context{Registry: reg, RunID: uuid.NewString()}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	c.Logger = c.Logger.With("run", c.RunID[:8])
	c.Hooks = c.Hooks.WithDefaults()
	if c.base == nil {
		c.base = context.Background()
	}
	return c
}

// Base returns the context passed to hooks.
func (c *Context) Base() context.Context { return c.base }
