package bifrost

import (
	"time"

	"github.com/rzbill/bifrost/internal/logs"
)

// Metrics observes handle activity.
type Metrics interface {
	ObserveAppend(logID logs.LogID, records int, elapsed time.Duration)
	AppendFailed(kind string)
	RecordsRead(logID logs.LogID, n int)
	Trimmed(logID logs.LogID)
	Reconfigured(logID logs.LogID)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAppend(logs.LogID, int, time.Duration) {}
func (noopMetrics) AppendFailed(string)                          {}
func (noopMetrics) RecordsRead(logs.LogID, int)                  {}
func (noopMetrics) Trimmed(logs.LogID)                           {}
func (noopMetrics) Reconfigured(logs.LogID)                      {}
