// Package event carries row change events through a processing pipeline.
// Change events come from an external capture layer; this package types
// them, fans them out over workers, and enriches them through the
// reference resolver before handing them to a sink.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rubeniskov/ripel/pkg/value"
)

// Operation is the kind of row change an event describes.
type Operation int

const (
	OpInsert Operation = iota
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseOperation parses the textual operation form.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "insert":
		return OpInsert, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}

// ChangeEvent is one captured row change.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string

	// Operation is the change kind.
	Operation Operation

	// Table is the source table the row belongs to.
	Table string

	// Before holds the row state before the change, for updates and
	// deletes.
	Before value.Object

	// After holds the row state after the change, for inserts and
	// updates.
	After value.Object

	// At is the capture timestamp.
	At time.Time

	// CorrelationID ties the event to a trace.
	CorrelationID string

	// PartitionKey routes the event consistently. Empty falls back to
	// the table name.
	PartitionKey string
}

// NewChange creates a change event with generated identifiers.
func NewChange(op Operation, table string, before, after value.Object) ChangeEvent {
	return ChangeEvent{
		ID:            uuid.NewString(),
		Operation:     op,
		Table:         table,
		Before:        before,
		After:         after,
		At:            time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}

// EffectivePartitionKey returns the partition key, falling back to the
// table name.
func (e ChangeEvent) EffectivePartitionKey() string {
	if e.PartitionKey != "" {
		return e.PartitionKey
	}
	return e.Table
}

// Row returns the row state the event carries for enrichment: the after
// image when present, else the before image.
func (e ChangeEvent) Row() value.Object {
	if !e.After.IsEmpty() {
		return e.After
	}
	return e.Before
}
