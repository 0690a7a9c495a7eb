package ui

import (
	"sync"
	"testing"
)

// The frame loop reads the pipeline and cancel fields while Load and the
// run workers write them; the accessors must make that safe under the
// race detector.
func TestWorkerFieldAccessIsSynchronized(t *testing.T) {
	a := &App{}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				a.setPipeline(nil)
				a.setCancel(func() {})
				a.stop()
				_ = a.getPipeline()
			}
		}()
	}
	wg.Wait()
}
