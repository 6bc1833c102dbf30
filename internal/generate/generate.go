/*
Package generate produces candidate items from queued sources.

Generation runs in two model calls: the first extracts supported facts and
relations from the source excerpt, the second builds a four-choice question
from them. A hard gate rejects malformed candidates outright; a soft gate
only marks them for later review. Every model call goes through the rate
gate, and a blocked call skips the source instead of failing the run.
*/
package generate

import (
	"context"

	"github.com/google/uuid"

	"github.com/hoangvle/recall-cycle/internal/store"
)

// itemNamespace seeds deterministic item ids so regenerating the same
// source never forks a second identity.
var itemNamespace = uuid.MustParse("c1f0b5a2-4b7d-4f7e-9a8c-2d93f1e6a0b4")

// ItemID derives the stable item id for a source.
func ItemID(sourceID string) string {
	return uuid.NewSHA1(itemNamespace, []byte(sourceID)).String()
}

// Generator turns one source into a candidate item. A nil item with a nil
// error means the source was rejected and should be skipped, not retried.
type Generator interface {
	Generate(ctx context.Context, src store.Source) (*store.Item, error)
}
