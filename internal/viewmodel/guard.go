package viewmodel

import "sync"

// CaptureGuard admits at most one capture per order id. Share one guard between every
// payment view-model in the process.
type CaptureGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCaptureGuard() *CaptureGuard {
	return &CaptureGuard{inFlight: make(map[string]struct{})}
}

func (g *CaptureGuard) Acquire(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[orderID]; busy {
		return false
	}
	g.inFlight[orderID] = struct{}{}
	return true
}

func (g *CaptureGuard) Release(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, orderID)
}
