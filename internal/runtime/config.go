package runtime

import "github.com/lattice-run/lattice/pkg/domain"

// activeConfig is the ordered root-to-leaf stack of active states. The
// invariant is structural: every non-leaf entry is a superstate whose active
// child is the next entry, and the length equals nesting depth + 1.
type activeConfig struct {
	model *domain.Model
	stack []domain.StateID
}

func newActiveConfig(model *domain.Model) *activeConfig {
	return &activeConfig{model: model}
}

// enterInitial resets the stack to the full initial descent of the given
// machine: the machine's initial state, then recursively each sub-machine's
// initial state until a non-superstate leaf is reached.
func (c *activeConfig) enterInitial(machine domain.MachineID) {
	c.stack = c.stack[:0]
	c.stack = append(c.stack, c.descend(c.model.Machine(machine).Initial)...)
}

// descend returns the path from the given state down to the deepest
// non-superstate leaf, following initial states.
func (c *activeConfig) descend(state domain.StateID) []domain.StateID {
	path := []domain.StateID{state}
	for {
		node := c.model.State(state)
		if !node.IsSuperstate() {
			return path
		}
		state = c.model.Machine(node.SubMachine).Initial
		path = append(path, state)
	}
}

// replaceFrom swaps the suffix starting at level for the full descent of the
// target state. Used when a transition commits: levels above the transition's
// machine are untouched, everything below is re-derived from the target.
func (c *activeConfig) replaceFrom(level int, target domain.StateID) {
	c.stack = append(c.stack[:level], c.descend(target)...)
}

// depth returns the number of active states (nesting depth + 1).
func (c *activeConfig) depth() int {
	return len(c.stack)
}

// at returns the active state at the given level (0 = root machine's state).
func (c *activeConfig) at(level int) domain.StateID {
	return c.stack[level]
}

// leaf returns the innermost active state.
func (c *activeConfig) leaf() domain.StateID {
	return c.stack[len(c.stack)-1]
}

// path returns the root-to-leaf state names.
func (c *activeConfig) path() []string {
	out := make([]string, len(c.stack))
	for i, sid := range c.stack {
		out[i] = c.model.State(sid).Name
	}
	return out
}

// states returns a copy of the active stack.
func (c *activeConfig) states() []domain.StateID {
	out := make([]domain.StateID, len(c.stack))
	copy(out, c.stack)
	return out
}

func (c *activeConfig) clear() {
	c.stack = c.stack[:0]
}
