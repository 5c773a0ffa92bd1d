package domain

// Event carries the name and payload of the external event that triggered the
// current step. A nil Event means an internal (eventless) step.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Context is the persistent, session-scoped variable workspace shared by all
// guard/action evaluations in one session, plus the triggering event. It is
// passed explicitly into every evaluation rather than living as ambient
// global state, so multiple sessions can run independently.
//
// The engine guarantees strictly serial, non-reentrant access.
type Context struct {
	Vars  map[string]any
	Event *Event
}

// NewContext creates an empty workspace.
func NewContext() *Context {
	return &Context{Vars: make(map[string]any)}
}

// Set stores a workspace variable.
func (c *Context) Set(name string, value any) {
	c.Vars[name] = value
}

// Get reads a workspace variable.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// Snapshot returns a shallow copy of the workspace variables.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.Vars))
	for k, v := range c.Vars {
		out[k] = v
	}
	return out
}

// Clear empties the workspace, keeping the map allocated.
func (c *Context) Clear() {
	for k := range c.Vars {
		delete(c.Vars, k)
	}
	c.Event = nil
}
