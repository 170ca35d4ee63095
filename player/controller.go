package player

import (
	"time"

	"github.com/gosuda/notnon-video/catalog"
)

// Controller owns one State and reports the paint operations each event
// produces. It is not safe for concurrent use; callers serialize events.
type Controller struct {
	state State
	loc   *time.Location
}

// Option configures a Controller.
type Option func(*Controller)

// WithLocation sets the time zone used for date labels.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New returns a Controller in the initial Idle state.
func New(opts ...Option) *Controller {
	c := &Controller{state: NewState(), loc: time.Local}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch applies ev and returns the paint operations for the change.
func (c *Controller) Dispatch(ev Event) []Op {
	prev := c.state.View()
	c.state = Reduce(c.state, ev)
	return Diff(prev, c.state.View())
}

// Load renders a freshly loaded working set and re-applies the current query.
func (c *Controller) Load(ws catalog.WorkingSet) []Op {
	return c.Dispatch(Load{Set: ws, Loc: c.loc})
}

// Publish applies a loader result: a working set or a load error.
func (c *Controller) Publish(ws catalog.WorkingSet, err error) []Op {
	if err != nil {
		return c.Dispatch(LoadFailed{Err: err})
	}
	return c.Load(ws)
}

// Search filters the cards by query.
func (c *Controller) Search(query string) []Op {
	return c.Dispatch(Search{Query: query})
}

// Select plays the visible card at index.
func (c *Controller) Select(index int) []Op {
	return c.Dispatch(Select{Index: index})
}

// SelectURL plays the first visible card bound to url.
func (c *Controller) SelectURL(url string) []Op {
	return c.Dispatch(SelectURL{URL: url})
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// View returns the display projection of the current state.
func (c *Controller) View() View { return c.state.View() }
