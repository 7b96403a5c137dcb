package processors

import (
	"context"

	"edudebt_collection/internal/ports"
)

type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	return nil
}

// Registry indexes processors by Type; noop is always present.
func Registry(procs ...ports.Processor) map[string]ports.Processor {
	reg := map[string]ports.Processor{
		"noop": NoopProcessor{},
	}
	for _, p := range procs {
		if p != nil {
			reg[p.Type()] = p
		}
	}
	return reg
}
