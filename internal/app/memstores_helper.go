package app

import "github.com/mafzaal/letstalk-index/internal/app/storage/memory"

// NewMemoryStoresForTest constructs a fully populated in-memory store set.
// Intended for unit tests; production deployments should configure a
// Postgres DSN so jobs and reports survive a restart.
func NewMemoryStoresForTest() Stores {
	mem := memory.New()
	return Stores{
		Jobs:    mem,
		Reports: mem,
	}
}
