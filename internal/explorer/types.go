package explorer

import "time"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Metrics records metrics for explorer calls.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
		ObserveCache(hit bool)
	}
)
