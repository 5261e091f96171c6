package output

import (
	"errors"

	"github.com/tkjaer/esweep/internal/shared"
)

// Output interface for different output types
type Output interface {
	CompleteScan(report *shared.ScanReport)
	HostChange(event shared.PresenceEvent)
	Close() error
}

// OutputManager manages multiple outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) CompleteScan(report *shared.ScanReport) {
	for _, o := range om.outputs {
		o.CompleteScan(report)
	}
}

func (om *OutputManager) HostChange(event shared.PresenceEvent) {
	for _, o := range om.outputs {
		o.HostChange(event)
	}
}

// Close closes every output and returns their errors joined
func (om *OutputManager) Close() error {
	var errs []error
	for _, o := range om.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
