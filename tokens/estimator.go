// Package tokens estimates how many model tokens a piece of text or a list of
// messages will consume.
package tokens

import (
	"sync"
	"sync/atomic"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

const (
	// BytesPerToken is the divisor of the heuristic rule: one token per four
	// UTF-8 bytes, rounded up.
	BytesPerToken = 4

	// MessageOverhead is charged once per message for role and framing.
	MessageOverhead = 4
)

// Precision tells whether a count came from a real tokenizer.
type Precision int

const (
	PrecisionHeuristic Precision = iota
	PrecisionExact
)

func (p Precision) String() string {
	if p == PrecisionExact {
		return "exact"
	}
	return "heuristic"
}

type Count struct {
	Tokens    int
	Precision Precision
}

// Add sums two counts. The result is exact only if both are.
func (c Count) Add(o Count) Count {
	return Count{Tokens: c.Tokens + o.Tokens, Precision: min(c.Precision, o.Precision)}
}

// Tokenizer counts tokens precisely for one model encoding.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	Name() string
}

// HeuristicTokens is ceil(len(text in bytes) / BytesPerToken).
func HeuristicTokens(text string) int {
	return (len(text) + BytesPerToken - 1) / BytesPerToken
}

// Estimator counts with its Tokenizer when one is configured and falls back
// to HeuristicTokens whenever the tokenizer is missing or fails. It never
// returns an error.
type Estimator struct {
	tokenizer Tokenizer
	fallbacks atomic.Int64
	warnOnce  sync.Once
}

// NewEstimator returns an estimator over tok. A nil tok gives a purely
// heuristic estimator.
func NewEstimator(tok Tokenizer) *Estimator {
	return &Estimator{tokenizer: tok}
}

// NewEstimatorForEncoding loads the named tiktoken encoding. An empty name,
// or an encoding that cannot be loaded, gives a heuristic estimator.
func NewEstimatorForEncoding(encoding string) *Estimator {
	if encoding == "" {
		return NewEstimator(nil)
	}

	tok, err := NewTiktokenTokenizer(encoding)
	if err != nil {
		e := NewEstimator(nil)
		e.recordFallback(encoding, err)
		return e
	}
	return NewEstimator(tok)
}

// Precise reports whether a tokenizer is configured.
func (e *Estimator) Precise() bool {
	return e.tokenizer != nil
}

// Fallbacks is the number of times the heuristic was used in place of a
// failed tokenizer.
func (e *Estimator) Fallbacks() int64 {
	return e.fallbacks.Load()
}

func (e *Estimator) EstimateTokens(text string) Count {
	if e.tokenizer == nil {
		return Count{Tokens: HeuristicTokens(text), Precision: PrecisionHeuristic}
	}
	if text == "" {
		return Count{Precision: PrecisionExact}
	}

	n, err := e.tokenizer.CountTokens(text)
	if err != nil {
		e.recordFallback(e.tokenizer.Name(), err)
		return Count{Tokens: HeuristicTokens(text), Precision: PrecisionHeuristic}
	}
	return Count{Tokens: n, Precision: PrecisionExact}
}

// EstimateMessage is MessageOverhead plus the content tokens. Metadata is
// not sent to the model and is not counted.
func (e *Estimator) EstimateMessage(m schema.Message) Count {
	c := e.EstimateTokens(m.Content)
	c.Tokens += MessageOverhead
	return c
}

func (e *Estimator) EstimateMessages(msgs []schema.Message) Count {
	total := Count{Precision: PrecisionExact}
	if e.tokenizer == nil {
		total.Precision = PrecisionHeuristic
	}
	for _, m := range msgs {
		total = total.Add(e.EstimateMessage(m))
	}
	return total
}

func (e *Estimator) recordFallback(tokenizer string, err error) {
	e.fallbacks.Add(1)
	e.warnOnce.Do(func() {
		logger.Info("TokenEstimationFallback: precise token counting unavailable, using heuristic",
			zap.String("tokenizer", tokenizer), zap.Error(err))
	})
}
