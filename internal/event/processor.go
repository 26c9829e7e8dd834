package event

import (
	"context"
	"fmt"
)

// Processor handles one change event. Implementations must be safe for
// concurrent use; the pipeline calls Process from multiple workers.
type Processor interface {
	Process(ctx context.Context, ev ChangeEvent) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, ev ChangeEvent) error

func (f ProcessorFunc) Process(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}

// Chain runs processors in order, stopping at the first failure.
type Chain struct {
	procs []Processor
}

// NewChain builds a chain over the given processors.
func NewChain(procs ...Processor) *Chain {
	return &Chain{procs: procs}
}

// Add appends a processor to the chain.
func (c *Chain) Add(p Processor) *Chain {
	c.procs = append(c.procs, p)
	return c
}

// Len returns the number of chained processors.
func (c *Chain) Len() int { return len(c.procs) }

// Process runs every processor against the event in order.
func (c *Chain) Process(ctx context.Context, ev ChangeEvent) error {
	for i, p := range c.procs {
		if err := p.Process(ctx, ev); err != nil {
			return fmt.Errorf("processor %d failed for event %s: %w", i, ev.ID, err)
		}
	}
	return nil
}
