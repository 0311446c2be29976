package compress

import (
	"math"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/tokens"
)

type Stats struct {
	TotalTokens  int
	MessageCount int
	RoleCounts   map[schema.Role]int
	OverBudget   bool
	// BudgetRatio is TotalTokens / maxTokens, 0 when there is no budget.
	BudgetRatio float64
	Precision   tokens.Precision
}

// CheckBudget reports whether msgs exceed maxTokens, together with their
// estimated cost.
func (c *Compressor) CheckBudget(msgs []schema.Message, maxTokens int) (bool, tokens.Count) {
	count := c.estimator.EstimateMessages(msgs)
	return count.Tokens > maxTokens, count
}

func (c *Compressor) Stats(msgs []schema.Message, maxTokens int) Stats {
	over, count := c.CheckBudget(msgs, maxTokens)

	roles := map[schema.Role]int{}
	for _, m := range msgs {
		roles[m.Role]++
	}

	var ratio float64
	if maxTokens > 0 {
		ratio = float64(count.Tokens) / float64(maxTokens)
	}

	return Stats{
		TotalTokens:  count.Tokens,
		MessageCount: len(msgs),
		RoleCounts:   roles,
		OverBudget:   over,
		BudgetRatio:  ratio,
		Precision:    count.Precision,
	}
}

// CompressWithReserve keeps a reserveRatio share of maxTokens free for the
// model's reply while messages can still be dropped whole. Once the system
// messages plus the hard floor no longer fit the reduced target, the hard
// floor is cut against the full maxTokens, so only that set is kept and the
// reserve is given up. The number of kept messages never decreases as
// maxTokens grows.
func (c *Compressor) CompressWithReserve(msgs []schema.Message, maxTokens int, reserveRatio float64) (*Result, error) {
	if reserveRatio <= 0 || reserveRatio >= 1 {
		return c.Compress(msgs, maxTokens)
	}

	target := int(math.Floor(float64(maxTokens) * (1 - reserveRatio)))
	return c.compress(msgs, target, maxTokens)
}
