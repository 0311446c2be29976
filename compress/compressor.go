// Package compress reduces a session's history to a token budget before it
// is sent to a model.
package compress

import (
	"context"
	"errors"
	"fmt"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/tokens"
	"github.com/SaiNageswarS/go-collection-boot/linq"
)

// DefaultHardFloor is the number of most recent non-system messages kept
// when dropping alone cannot reach the budget.
const DefaultHardFloor = 5

var ErrContextExhausted = errors.New("context exhausted")

// ExhaustedError is returned when not even the system messages plus a
// one-token remnant of the newest message fit the budget.
type ExhaustedError struct {
	MaxTokens   int
	FloorTokens int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("context exhausted: hard floor needs %d tokens, budget is %d", e.FloorTokens, e.MaxTokens)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrContextExhausted
}

// Tier records which step of the policy produced a Result.
type Tier int

const (
	TierNone Tier = iota
	TierSlidingWindow
	TierHardFloor
)

func (t Tier) String() string {
	switch t {
	case TierSlidingWindow:
		return "sliding_window"
	case TierHardFloor:
		return "hard_floor"
	default:
		return "none"
	}
}

type Result struct {
	Messages       []schema.Message
	Tier           Tier
	Tokens         tokens.Count
	OriginalTokens tokens.Count
	// Dropped counts messages removed from the input.
	Dropped int
	// Truncated is set when the content of one kept message was shortened.
	Truncated bool
}

type Compressor struct {
	estimator *tokens.Estimator
	floor     int
}

// NewCompressor returns a compressor using est for all costs. floor <= 0
// selects DefaultHardFloor.
func NewCompressor(est *tokens.Estimator, floor int) *Compressor {
	if est == nil {
		est = tokens.NewEstimator(nil)
	}
	if floor <= 0 {
		floor = DefaultHardFloor
	}
	return &Compressor{estimator: est, floor: floor}
}

func (c *Compressor) HardFloor() int {
	return c.floor
}

func (c *Compressor) Estimator() *tokens.Estimator {
	return c.estimator
}

// Compress returns msgs reduced to at most maxTokens. msgs are ordered oldest
// first and are never modified; the result keeps their relative order.
//
// The policy, in order:
//  1. everything fits: returned unchanged.
//  2. system messages plus the newest floor non-system messages fit: the
//     oldest non-system messages are dropped until the rest fits.
//  3. otherwise only the system messages and the newest floor non-system
//     messages are considered, and the oldest of them is truncated. When not
//     even one token of it fits, it is dropped and the next one is tried.
//  4. nothing fits: ErrContextExhausted.
func (c *Compressor) Compress(msgs []schema.Message, maxTokens int) (*Result, error) {
	return c.compress(msgs, maxTokens, maxTokens)
}

// compress runs the policy with the first two tiers aiming at windowTokens
// and the hard floor at maxTokens. windowTokens <= maxTokens.
func (c *Compressor) compress(msgs []schema.Message, windowTokens, maxTokens int) (*Result, error) {
	costs, err := linq.Pipe2(
		linq.FromSlice(context.Background(), msgs),
		linq.Select(c.estimator.EstimateMessage),
		linq.ToSlice[tokens.Count](),
	)
	if err != nil {
		return nil, err
	}

	original := c.sum(costs, allIndexes(len(msgs)))
	if original.Tokens <= windowTokens {
		return &Result{
			Messages:       append([]schema.Message(nil), msgs...),
			Tier:           TierNone,
			Tokens:         original,
			OriginalTokens: original,
		}, nil
	}

	var system, rest []int
	for i, m := range msgs {
		if m.IsSystem() {
			system = append(system, i)
		} else {
			rest = append(rest, i)
		}
	}

	systemTokens := c.sum(costs, system).Tokens
	floorStart := max(0, len(rest)-c.floor)
	floorTokens := systemTokens + c.sum(costs, rest[floorStart:]).Tokens

	if floorTokens <= windowTokens {
		return c.slidingWindow(msgs, costs, rest, original, windowTokens), nil
	}
	return c.hardFloor(msgs, costs, system, rest[floorStart:], systemTokens, original, maxTokens)
}

func (c *Compressor) slidingWindow(msgs []schema.Message, costs []tokens.Count, rest []int, original tokens.Count, maxTokens int) *Result {
	dropped := map[int]bool{}
	total := original.Tokens
	for _, i := range rest {
		if total <= maxTokens {
			break
		}
		dropped[i] = true
		total -= costs[i].Tokens
	}

	kept := make([]schema.Message, 0, len(msgs)-len(dropped))
	for i, m := range msgs {
		if !dropped[i] {
			kept = append(kept, m)
		}
	}

	return &Result{
		Messages:       kept,
		Tier:           TierSlidingWindow,
		Tokens:         c.estimator.EstimateMessages(kept),
		OriginalTokens: original,
		Dropped:        len(dropped),
	}
}

func (c *Compressor) hardFloor(msgs []schema.Message, costs []tokens.Count, system, floor []int, systemTokens int, original tokens.Count, maxTokens int) (*Result, error) {
	for j, candidate := range floor {
		newer := floor[j+1:]
		available := maxTokens - systemTokens - c.sum(costs, newer).Tokens

		replacement, ok := c.fit(msgs[candidate], costs[candidate], available)
		if !ok {
			continue
		}

		keep := map[int]bool{}
		for _, i := range system {
			keep[i] = true
		}
		for _, i := range floor[j:] {
			keep[i] = true
		}

		kept := make([]schema.Message, 0, len(keep))
		for i, m := range msgs {
			if !keep[i] {
				continue
			}
			if i == candidate {
				m = replacement
			}
			kept = append(kept, m)
		}

		res := &Result{
			Messages:       kept,
			Tier:           TierHardFloor,
			Tokens:         c.estimator.EstimateMessages(kept),
			OriginalTokens: original,
			Dropped:        len(msgs) - len(kept),
			Truncated:      replacement.Content != msgs[candidate].Content,
		}
		if res.Dropped == 0 && !res.Truncated {
			res.Tier = TierNone
		}
		return res, nil
	}

	floorTokens := systemTokens + tokens.MessageOverhead + 1
	if len(floor) == 0 {
		floorTokens = systemTokens
	}
	return nil, &ExhaustedError{MaxTokens: maxTokens, FloorTokens: floorTokens}
}

// fit returns m unchanged if it costs at most available tokens, otherwise a
// copy holding the longest rune prefix of its content that does, as long as
// that prefix is at least one token.
func (c *Compressor) fit(m schema.Message, cost tokens.Count, available int) (schema.Message, bool) {
	if cost.Tokens <= available {
		return m, true
	}

	limit := available - tokens.MessageOverhead
	if limit < 1 {
		return schema.Message{}, false
	}

	runes := []rune(m.Content)
	fits := func(n int) bool {
		return c.estimator.EstimateTokens(string(runes[:n])).Tokens <= limit
	}
	if len(runes) == 0 || !fits(1) {
		return schema.Message{}, false
	}

	// largest n in [1, len(runes)) with fits(n)
	lo, hi := 1, len(runes)-1
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	truncated := m
	truncated.Content = string(runes[:lo])
	return truncated, true
}

func (c *Compressor) sum(costs []tokens.Count, indexes []int) tokens.Count {
	total := tokens.Count{Precision: tokens.PrecisionExact}
	if !c.estimator.Precise() {
		total.Precision = tokens.PrecisionHeuristic
	}
	for _, i := range indexes {
		total = total.Add(costs[i])
	}
	return total
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
