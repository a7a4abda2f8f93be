// Package utils provides common utility functions for Go services.
// It includes error handling and pointer helpers.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import "sync"

// MergeErrorChans merges multiple error channels into a single output channel.
// It starts a goroutine for each input channel to forward errors to the output.
// The output channel is closed when all input channels are closed.
// This is useful for aggregating errors from multiple concurrent operations.
func MergeErrorChans(channels ...chan error) chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(c chan error) {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
