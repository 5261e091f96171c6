//go:build !linux

package gate

import "time"

// New returns a gate polling the named interface, or any interface when name is empty.
func New(name string) Gate {
	return NewPollingGate(name, time.Second)
}
