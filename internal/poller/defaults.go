package poller

import "time"

const (
	defaultInterval    = 300 * time.Second
	defaultBackoff     = 15 * time.Second
	maxHeightsPerCycle = 1000
)
