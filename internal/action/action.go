// Package action routes fired automation links to the caller that performs them.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/widget-sync/internal/automation"
)

// ErrUnknownAction is returned when no caller handles a link type.
var ErrUnknownAction = errors.New("action: no handler for link type")

// Router dispatches links by Link.Type.
type Router struct {
	routes   map[string]automation.Caller
	fallback automation.Caller
}

var _ automation.Caller = (*Router)(nil)

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]automation.Caller)}
}

// Handle registers c for links of the given type.
func (r *Router) Handle(linkType string, c automation.Caller) *Router {
	r.routes[linkType] = c
	return r
}

// Default registers c for link types with no explicit route.
func (r *Router) Default(c automation.Caller) *Router {
	r.fallback = c
	return r
}

// Fire forwards link to its caller.
func (r *Router) Fire(ctx context.Context, link automation.Link) error {
	c, ok := r.routes[link.Type]
	if !ok {
		c = r.fallback
	}
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownAction, link.Type)
	}
	return c.Fire(ctx, link)
}
