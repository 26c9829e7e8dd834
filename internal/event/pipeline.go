package event

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Pipeline fans change events out to a fixed pool of workers, each running
// the same processor. Processing order across events is not guaranteed;
// callers needing per-key ordering partition upstream.
type Pipeline struct {
	proc    Processor
	events  chan ChangeEvent
	workers int
	logger  *slog.Logger
}

// NewPipeline builds a pipeline with the given worker count and channel
// capacity. A nil logger uses the discard logger.
func NewPipeline(proc Processor, workers, buffer int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		proc:    proc,
		events:  make(chan ChangeEvent, buffer),
		workers: workers,
		logger:  logger,
	}
}

// Submit enqueues an event, blocking while the buffer is full.
func (p *Pipeline) Submit(ctx context.Context, ev ChangeEvent) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit event %s: %w", ev.ID, ctx.Err())
	}
}

// Close stops intake. Run returns once the remaining buffered events are
// drained. Submit must not be called after Close.
func (p *Pipeline) Close() {
	close(p.events)
}

// Run processes events until the pipeline is closed and drained, the
// context is canceled, or a processor fails. The first failure cancels the
// remaining workers and is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	p.logger.Info("pipeline starting", slog.Int("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case ev, ok := <-p.events:
					if !ok {
						return nil
					}
					p.logger.Debug("processing event",
						slog.Int("worker", worker),
						slog.String("event_id", ev.ID),
						slog.String("table", ev.Table),
						slog.String("op", ev.Operation.String()))
					if err := p.proc.Process(ctx, ev); err != nil {
						p.logger.Error("event processing failed",
							slog.String("event_id", ev.ID),
							slog.String("table", ev.Table),
							slog.Any("error", err))
						return err
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	err := g.Wait()
	if err != nil {
		p.logger.Error("pipeline stopped", slog.Any("error", err))
		return err
	}
	p.logger.Info("pipeline drained")
	return nil
}
