package agreement

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ProtocolGenerator issues agreement protocol numbers. The counter keeps them
// unique inside a process at any rate; the node tag separates processes.
type ProtocolGenerator struct {
	node string
	seq  atomic.Uint64
}

func NewProtocolGenerator() *ProtocolGenerator {
	id := uuid.New()
	return &ProtocolGenerator{node: strings.ToUpper(fmt.Sprintf("%x", id[:3]))}
}

func (g *ProtocolGenerator) Next(debtID string, at time.Time) string {
	n := g.seq.Add(1)
	return fmt.Sprintf("AGR-%s-%s-%s-%06d", at.UTC().Format("20060102150405"), debtTag(debtID), g.node, n)
}

func debtTag(debtID string) string {
	tag := strings.ToUpper(strings.ReplaceAll(debtID, "-", ""))
	if len(tag) > 8 {
		tag = tag[:8]
	}
	if tag == "" {
		tag = "NODEBT"
	}
	return tag
}
