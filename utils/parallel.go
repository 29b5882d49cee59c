package utils

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel and returns their combined errors. The first failure, or panic,
// cancels the context given to the others; their resulting context errors are not reported.
func RunInParallel(ctx context.Context, fs []SimpleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		combined error
	)
	storeError := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if combined == nil || !errors.Is(err, context.Canceled) {
			combined = multierr.Combine(combined, err)
		}
	}

	wg.Add(len(fs))
	for _, f := range fs {
		go func(f SimpleFunc) {
			defer wg.Done()
			defer func() {
				if thePanic := recover(); thePanic != nil {
					storeError(fmt.Errorf("got panic running something in parallel: %v", thePanic))
					cancel()
				}
			}()
			if err := f(ctx); err != nil {
				storeError(err)
				cancel()
			}
		}(f)
	}
	wg.Wait()
	return combined
}

// SplitWork divides total items into at most parts contiguous [from, to) ranges of nearly equal size.
func SplitWork(total, parts int) [][2]int {
	if total <= 0 || parts <= 0 {
		return nil
	}
	if parts > total {
		parts = total
	}
	ranges := make([][2]int, 0, parts)
	size, extra := total/parts, total%parts
	from := 0
	for i := 0; i < parts; i++ {
		to := from + size
		if i < extra {
			to++
		}
		ranges = append(ranges, [2]int{from, to})
		from = to
	}
	return ranges
}
