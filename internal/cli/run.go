package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rubeniskov/ripel/internal/config"
	"github.com/rubeniskov/ripel/internal/event"
	"github.com/rubeniskov/ripel/internal/source"
	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/value"
)

// runOptions holds options for the run command.
type runOptions struct {
	Entities string
	Input    string
}

// newRunCommand creates the run command.
func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve change events into enriched entities",
		Long: `Read row-change events, resolve every declared association of each
changed row against the configured data source, and emit the enriched
entities as JSON lines on stdout.

Events arrive as JSON lines, one event per line:

  {"op": "insert", "table": "Jugador", "after": {"id": 9, "Club_id": 3}}

Entity models are declared in a YAML definitions file (see --entities).`,
		Example: `  # Resolve events from a file against a local SQLite database
  ripel run --entities entities.yaml --source-type sqlite --source-path app.db --input events.ndjson

  # Stream events from stdin
  tail -f changes.ndjson | ripel run --entities entities.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Entities, "entities", "entities.yaml", "Path to the entity definitions file")
	cmd.Flags().StringVar(&opts.Input, "input", "-", "Event input file (\"-\" for stdin)")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	models, err := config.LoadEntities(opts.Entities)
	if err != nil {
		return err
	}
	reg := entity.NewRegistry()
	if err := reg.RegisterAll(models...); err != nil {
		return fmt.Errorf("failed to register entities: %w", err)
	}
	logger.Info("entities registered", slog.Int("count", len(models)))

	ctx := cmd.Context()
	src, err := source.Open(ctx, cfg.Source.ToSource(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	in := cmd.InOrStdin()
	if opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to open input %s: %w", opts.Input, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	sink := newJSONSink(cmd.OutOrStdout())
	proc := event.NewEntityProcessor(reg, expr.NewEnvironment(), src.DB(), sink, logger)
	pipe := event.NewPipeline(proc, cfg.Pipeline.Workers, cfg.Pipeline.Buffer, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe.Run(ctx) })
	g.Go(func() error {
		defer pipe.Close()
		return submitEvents(ctx, pipe, in)
	})
	return g.Wait()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// eventEnvelope is the wire form of one change event.
type eventEnvelope struct {
	Op           string         `json:"op"`
	Table        string         `json:"table"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	PartitionKey string         `json:"partition_key,omitempty"`
}

// submitEvents parses JSON lines and feeds them into the pipeline.
func submitEvents(ctx context.Context, pipe *event.Pipeline, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var env eventEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("input line %d: %w", line, err)
		}
		op, err := event.ParseOperation(env.Op)
		if err != nil {
			return fmt.Errorf("input line %d: %w", line, err)
		}
		ev := event.NewChange(op, env.Table, decodeRow(env.Before), decodeRow(env.After))
		ev.PartitionKey = env.PartitionKey
		if err := pipe.Submit(ctx, ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}

// decodeRow converts a decoded JSON object into a row image.
func decodeRow(m map[string]any) value.Object {
	obj := value.NewObject()
	for k, v := range m {
		obj.Set(k, decodeValue(v))
	}
	return obj
}

func decodeValue(v any) value.Value {
	if m, ok := v.(map[string]any); ok {
		return value.FromObject(decodeRow(m))
	}
	return value.FromAny(v)
}

// jsonSink writes enriched entities as JSON lines. Emit is called from
// multiple pipeline workers.
type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

func (s *jsonSink) Emit(_ context.Context, entityName string, obj value.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(map[string]any{"entity": entityName, "data": encodeRow(obj)}); err != nil {
		return fmt.Errorf("failed to emit entity %s: %w", entityName, err)
	}
	return nil
}

func encodeRow(obj value.Object) map[string]any {
	out := make(map[string]any, obj.Len())
	for i := 0; i < obj.Len(); i++ {
		k, v := obj.At(i)
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v value.Value) any {
	switch v.Kind() {
	case value.KindNone, value.KindUndefined:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindNumber:
		if v.IsInteger() {
			if i, ok := v.AsI64(); ok {
				return i
			}
			if u, ok := v.AsU64(); ok {
				return u
			}
			// 128-bit integers beyond uint64 render as text.
			return v.String()
		}
		f, _ := v.AsF64()
		return f
	case value.KindString:
		s, _ := v.AsStr()
		return s
	case value.KindBytes:
		b, _ := v.AsBytes()
		return string(b)
	case value.KindObject:
		o, _ := v.AsObject()
		return encodeRow(o)
	default:
		return v.String()
	}
}
