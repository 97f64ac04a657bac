package engine

import "sync"

// CycleDetector remembers which (file, export set) pairs a run has already
// processed.
//
// A cyclic import chain can ask for a file that is still being processed
// further up the chain. Once the pair has been seen, the second request is
// served from the cache instead of re-entering the chain.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // run -> file\x00only -> seen
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle reports whether the run has already processed file for the
// export set with the given key.
func (c *CycleDetector) WouldCycle(runID, file, onlyKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[runID] == nil {
		return false
	}
	return c.history[runID][file+"\x00"+onlyKey]
}

// Record marks file and the export set as processed in the run.
func (c *CycleDetector) Record(runID, file, onlyKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[runID] == nil {
		c.history[runID] = make(map[string]bool)
	}
	c.history[runID][file+"\x00"+onlyKey] = true
}

// Clear removes all history for a run.
func (c *CycleDetector) Clear(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, runID)
}

// RunHistorySize returns the number of pairs tracked for a run.
func (c *CycleDetector) RunHistorySize(runID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[runID])
}
