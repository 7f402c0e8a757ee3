package sync

import "sync"

// Mutex wraps sync.Mutex so a deadlock-detecting implementation can be
// swapped in for debugging builds.
type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}
