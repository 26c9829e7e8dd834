package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/query"
	"github.com/rubeniskov/ripel/pkg/refs"
	"github.com/rubeniskov/ripel/pkg/value"
)

// Sink receives enriched entities produced from change events.
type Sink interface {
	Emit(ctx context.Context, entityName string, obj value.Object) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entityName string, obj value.Object) error

func (f SinkFunc) Emit(ctx context.Context, entityName string, obj value.Object) error {
	return f(ctx, entityName, obj)
}

// EntityProcessor enriches change events through the reference resolver:
// it maps the event's table to its registered entity model, resolves every
// declared association in one round trip, and emits the enriched object.
// Deletes pass through unresolved; there is no row left to enrich.
type EntityProcessor struct {
	reg    *entity.Registry
	env    *expr.Environment
	db     query.DB
	sink   Sink
	logger *slog.Logger
}

// NewEntityProcessor builds a resolver-backed processor. A nil logger uses
// the discard logger.
func NewEntityProcessor(reg *entity.Registry, env *expr.Environment, db query.DB, sink Sink, logger *slog.Logger) *EntityProcessor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EntityProcessor{reg: reg, env: env, db: db, sink: sink, logger: logger}
}

// Process resolves the event's row and emits it.
func (p *EntityProcessor) Process(ctx context.Context, ev ChangeEvent) error {
	model, err := p.reg.ByTable(ev.Table)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}

	if ev.Operation == OpDelete {
		p.logger.Debug("emitting delete without resolution",
			slog.String("event_id", ev.ID), slog.String("entity", model.EntityName))
		return p.sink.Emit(ctx, model.EntityName, ev.Row())
	}

	enriched, err := refs.Resolve(ctx, p.db, p.reg, p.env, model, ev.Row())
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}
	p.logger.Debug("resolved event",
		slog.String("event_id", ev.ID),
		slog.String("entity", model.EntityName))
	return p.sink.Emit(ctx, model.EntityName, enriched)
}
