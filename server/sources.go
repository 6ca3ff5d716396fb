package server

import (
	"fmt"

	"github.com/chainvibe/chainvibe/pkg/domain"
	"github.com/chainvibe/chainvibe/pkg/health"
)

// SourceControl adapts the health monitor to the Sources interface, scoped
// to the configured registry so unknown names are rejected instead of
// creating phantom health records
type SourceControl struct {
	monitor *health.Monitor
	known   map[string]bool
	order   []string
}

// NewSourceControl creates a source control over the configured sources
func NewSourceControl(monitor *health.Monitor, sources []domain.Source) *SourceControl {
	sc := &SourceControl{monitor: monitor, known: map[string]bool{}}
	for _, src := range sources {
		sc.known[src.Name] = true
		sc.order = append(sc.order, src.Name)
	}
	return sc
}

// Health returns the health view for every configured source, including
// ones that have not been fetched yet
func (sc *SourceControl) Health() map[string]SourceHealth {
	records := sc.monitor.Status()

	result := make(map[string]SourceHealth, len(sc.order))
	for _, name := range sc.order {
		rec, tracked := records[name]
		if !tracked {
			result[name] = SourceHealth{Name: name, Healthy: true}
			continue
		}
		result[name] = SourceHealth{
			Name:                 name,
			Healthy:              rec.Enabled && !rec.Disabled,
			ManuallyDisabled:     !rec.Enabled,
			ConsecutiveFailures:  rec.ConsecutiveFailures,
			ConsecutiveSuccesses: rec.ConsecutiveSuccesses,
			SuccessRate:          rec.SuccessRate(),
			AvgResponseTime:      rec.AvgResponseTime,
			LastItemCount:        rec.LastItemCount,
			LastError:            rec.LastError,
			LastSuccess:          rec.LastSuccess,
			LastFailure:          rec.LastFailure,
		}
	}
	return result
}

// Enable manually re-enables a configured source
func (sc *SourceControl) Enable(name string) error {
	if !sc.known[name] {
		return fmt.Errorf("unknown source %q", name)
	}
	sc.monitor.Enable(name)
	return nil
}

// Disable manually disables a configured source
func (sc *SourceControl) Disable(name string) error {
	if !sc.known[name] {
		return fmt.Errorf("unknown source %q", name)
	}
	sc.monitor.Disable(name)
	return nil
}
