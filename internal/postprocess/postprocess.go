// Package postprocess defines the CSS-to-CSS transform chain applied after
// compilation.
package postprocess

import (
	"context"
	"fmt"
)

// Input is the CSS handed to a processor. From and To are the source and
// destination paths; PrevMap is the source map produced so far, if any.
type Input struct {
	CSS     string
	From    string
	To      string
	PrevMap string
}

// Output is a processor result. Messages are non-fatal diagnostics.
type Output struct {
	CSS      string
	Map      string
	Messages []string
}

// Processor transforms CSS.
type Processor interface {
	Process(ctx context.Context, in Input) (*Output, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, in Input) (*Output, error)

func (f ProcessorFunc) Process(ctx context.Context, in Input) (*Output, error) {
	return f(ctx, in)
}

// Chain runs processors in order, feeding each the previous output.
type Chain []Processor

// Process runs the chain. An empty chain returns the input unchanged.
func (c Chain) Process(ctx context.Context, in Input) (*Output, error) {
	out := &Output{CSS: in.CSS, Map: in.PrevMap}
	for i, p := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.Process(ctx, Input{CSS: out.CSS, From: in.From, To: in.To, PrevMap: out.Map})
		if err != nil {
			return nil, fmt.Errorf("processor %d: %w", i, err)
		}
		out.CSS = res.CSS
		if res.Map != "" {
			out.Map = res.Map
		}
		out.Messages = append(out.Messages, res.Messages...)
	}
	return out, nil
}
