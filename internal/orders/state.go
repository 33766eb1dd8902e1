package orders

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseStarted     Phase = "STARTED"
	PhaseItemChecked Phase = "ITEM_CHECKED"
	PhaseItemApplied Phase = "ITEM_APPLIED"
	PhaseCommitted   Phase = "COMMITTED"
	PhaseRolledBack  Phase = "ROLLED_BACK"
)

var validNext = map[Phase]map[Phase]bool{
	PhaseStarted:     {PhaseItemChecked: true, PhaseRolledBack: true},
	PhaseItemChecked: {PhaseItemApplied: true, PhaseRolledBack: true},
	PhaseItemApplied: {PhaseItemChecked: true, PhaseCommitted: true, PhaseRolledBack: true},
	PhaseCommitted:   {},
	PhaseRolledBack:  {},
}

func CanTransition(from, to Phase) bool {
	return validNext[from][to]
}

var ErrIllegalTransition = errors.New("illegal submission transition")

// State is a phase plus the index of the line item it refers to (-1 when none).
type State struct {
	Phase Phase
	Item  int
}

func (s State) String() string {
	if s.Item < 0 {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.Item)
}

// Machine walks one order submission through
// Started -> ItemChecked(i) -> ItemApplied(i) -> ... -> Committed | RolledBack.
// Items must be visited in order, each checked before it is applied.
type Machine struct {
	items int
	trail []State
}

func NewMachine(items int) *Machine {
	return &Machine{items: items, trail: []State{{Phase: PhaseStarted, Item: -1}}}
}

func (m *Machine) State() State { return m.trail[len(m.trail)-1] }

func (m *Machine) Trail() []State {
	out := make([]State, len(m.trail))
	copy(out, m.trail)
	return out
}

func (m *Machine) move(to State) error {
	cur := m.State()
	if !CanTransition(cur.Phase, to.Phase) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, to)
	}
	m.trail = append(m.trail, to)
	return nil
}

func (m *Machine) Check(i int) error {
	cur := m.State()
	if i != cur.Item+1 || i >= m.items {
		return fmt.Errorf("%w: %s -> check item %d", ErrIllegalTransition, cur, i)
	}
	return m.move(State{Phase: PhaseItemChecked, Item: i})
}

func (m *Machine) Apply(i int) error {
	if cur := m.State(); i != cur.Item {
		return fmt.Errorf("%w: %s -> apply item %d", ErrIllegalTransition, cur, i)
	}
	return m.move(State{Phase: PhaseItemApplied, Item: i})
}

// ReadyToCommit reports whether every item has been applied.
func (m *Machine) ReadyToCommit() error {
	cur := m.State()
	if cur.Phase != PhaseItemApplied || cur.Item != m.items-1 {
		return fmt.Errorf("%w: %s -> commit with %d items", ErrIllegalTransition, cur, m.items)
	}
	return nil
}

func (m *Machine) Commit() error {
	if err := m.ReadyToCommit(); err != nil {
		return err
	}
	return m.move(State{Phase: PhaseCommitted, Item: -1})
}

func (m *Machine) RollBack() error {
	return m.move(State{Phase: PhaseRolledBack, Item: m.State().Item})
}
