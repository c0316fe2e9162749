package dapp

import (
	"sync"
)

type ControlName string

const (
	ControlConnect         ControlName = "connect"
	ControlRegister        ControlName = "register"
	ControlWithdrawPool    ControlName = "withdraw-pool"
	ControlWithdrawSpecial ControlName = "withdraw-special"
	ControlContribute      ControlName = "contribute"
	ControlNetwork         ControlName = "network"
)

// Control is an action button. It is disabled and relabeled while its action
// is in flight.
type Control struct {
	name      ControlName
	label     string
	busyLabel string

	mutex    sync.Mutex
	busy     bool
	restores uint64
}

type ControlState struct {
	Name     ControlName `json:"name"`
	Label    string      `json:"label"`
	Disabled bool        `json:"disabled"`
}

func newControl(name ControlName, label string, busyLabel string) *Control {
	return &Control{
		name:      name,
		label:     label,
		busyLabel: busyLabel,
	}
}

// Acquire marks the control busy. The returned release restores it and is
// safe to call more than once.
func (c *Control) Acquire() (func(), bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.busy {
		return nil, false
	}
	c.busy = true

	var once sync.Once
	return func() {
		once.Do(c.restore)
	}, true
}

func (c *Control) restore() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.busy = false
	c.restores++
}

func (c *Control) State() ControlState {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	label := c.label
	if c.busy {
		label = c.busyLabel
	}
	return ControlState{
		Name:     c.name,
		Label:    label,
		Disabled: c.busy,
	}
}

// Restores counts completed busy periods.
func (c *Control) Restores() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.restores
}

type controlSet struct {
	controls []*Control
	byName   map[ControlName]*Control
}

func newControlSet() *controlSet {
	set := &controlSet{
		byName: map[ControlName]*Control{},
	}
	set.add(newControl(ControlConnect, "Connect Wallet", "Connecting..."))
	set.add(newControl(ControlRegister, "Register", "Registering..."))
	set.add(newControl(ControlWithdrawPool, "Withdraw Pool", "Withdrawing..."))
	set.add(newControl(ControlWithdrawSpecial, "Withdraw Special", "Withdrawing..."))
	set.add(newControl(ControlContribute, "Contribute", "Sending..."))
	set.add(newControl(ControlNetwork, "Switch Network", "Switching..."))
	return set
}

func (s *controlSet) add(control *Control) {
	s.controls = append(s.controls, control)
	s.byName[control.name] = control
}

func (s *controlSet) get(name ControlName) *Control {
	return s.byName[name]
}

func (s *controlSet) states() []ControlState {
	states := make([]ControlState, 0, len(s.controls))
	for _, control := range s.controls {
		states = append(states, control.State())
	}
	return states
}
