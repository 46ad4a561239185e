package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dskvich/brahmos-bot/pkg/logger"
)

type Worker interface {
	Name() string
	Start(context.Context) error
}

// Group runs workers together. The first failure or panic stops the rest; all failures are returned.
type Group []Worker

func (g Group) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu     sync.Mutex
		result error
		wg     sync.WaitGroup
	)

	for _, w := range g {
		wg.Add(1)
		go func() {
			defer wg.Done()

			started := time.Now()
			err := runWorker(runCtx, w)
			if err == nil {
				slog.Info("Worker exited", "name", w.Name(), "ran", time.Since(started).Round(time.Millisecond))
				return
			}

			slog.Error("Worker failed", "name", w.Name(), logger.Err(err))
			mu.Lock()
			result = multierror.Append(result, fmt.Errorf("%s: %w", w.Name(), err))
			mu.Unlock()
			stop()
		}()
	}

	<-runCtx.Done()
	wg.Wait()

	return result
}

func runWorker(ctx context.Context, w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Start(ctx)
}
