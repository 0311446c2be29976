package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer counts whitespace-separated words and fails on a marker.
type wordTokenizer struct {
	failOn string
}

func (w wordTokenizer) CountTokens(text string) (int, error) {
	if w.failOn != "" && strings.Contains(text, w.failOn) {
		return 0, errors.New("tokenizer crashed")
	}
	return len(strings.Fields(text)), nil
}

func (w wordTokenizer) Name() string { return "words" }

func TestHeuristicTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one byte", "a", 1},
		{"exactly four", "abcd", 1},
		{"five bytes", "abcde", 2},
		{"sentence", "hello world!", 3},
		{"multibyte runes", "你好", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicTokens(tt.text))
		})
	}
}

func TestEstimator_Heuristic(t *testing.T) {
	e := NewEstimator(nil)
	assert.False(t, e.Precise())

	c := e.EstimateTokens("abcdefgh")
	assert.Equal(t, Count{Tokens: 2, Precision: PrecisionHeuristic}, c)

	// deterministic
	assert.Equal(t, c, e.EstimateTokens("abcdefgh"))
}

func TestEstimator_MessagesIncludeOverhead(t *testing.T) {
	e := NewEstimator(nil)
	msgs := []schema.Message{
		schema.NewMessage(schema.RoleSystem, "abcd"),
		schema.NewMessage(schema.RoleUser, ""),
		schema.NewMessage(schema.RoleAssistant, "abcdefgh"),
	}

	c := e.EstimateMessages(msgs)
	assert.Equal(t, 3*MessageOverhead+1+0+2, c.Tokens)
	assert.Equal(t, PrecisionHeuristic, c.Precision)

	assert.Equal(t, Count{Precision: PrecisionHeuristic}, e.EstimateMessages(nil))
}

func TestEstimator_MetadataIsNotCounted(t *testing.T) {
	e := NewEstimator(nil)
	md, err := schema.NewMetadata(map[string]string{"k": strings.Repeat("x", 400)}, nil)
	require.NoError(t, err)

	plain := schema.NewMessage(schema.RoleUser, "hello")
	annotated := plain
	annotated.Metadata = md

	assert.Equal(t, e.EstimateMessage(plain), e.EstimateMessage(annotated))
}

func TestEstimator_ExactTier(t *testing.T) {
	e := NewEstimator(wordTokenizer{})
	assert.True(t, e.Precise())

	assert.Equal(t, Count{Tokens: 3, Precision: PrecisionExact}, e.EstimateTokens("one two three"))
	assert.Equal(t, Count{Precision: PrecisionExact}, e.EstimateTokens(""))

	c := e.EstimateMessages([]schema.Message{
		schema.NewMessage(schema.RoleUser, "hello there"),
		schema.NewMessage(schema.RoleAssistant, "hi"),
	})
	assert.Equal(t, Count{Tokens: 2*MessageOverhead + 3, Precision: PrecisionExact}, c)
	assert.Zero(t, e.Fallbacks())
}

func TestEstimator_FallbackOnTokenizerFailure(t *testing.T) {
	e := NewEstimator(wordTokenizer{failOn: "boom"})

	c := e.EstimateTokens("boom boom")
	assert.Equal(t, Count{Tokens: HeuristicTokens("boom boom"), Precision: PrecisionHeuristic}, c)
	assert.Equal(t, int64(1), e.Fallbacks())

	// one failed piece downgrades the whole sum
	total := e.EstimateMessages([]schema.Message{
		schema.NewMessage(schema.RoleUser, "fine words"),
		schema.NewMessage(schema.RoleUser, "boom"),
	})
	assert.Equal(t, PrecisionHeuristic, total.Precision)
	assert.Equal(t, 2*MessageOverhead+2+HeuristicTokens("boom"), total.Tokens)
	assert.Equal(t, int64(2), e.Fallbacks())
}

func TestCount_Add(t *testing.T) {
	exact := Count{Tokens: 2, Precision: PrecisionExact}
	rough := Count{Tokens: 3, Precision: PrecisionHeuristic}

	assert.Equal(t, Count{Tokens: 4, Precision: PrecisionExact}, exact.Add(exact))
	assert.Equal(t, Count{Tokens: 5, Precision: PrecisionHeuristic}, exact.Add(rough))
	assert.Equal(t, "exact", PrecisionExact.String())
	assert.Equal(t, "heuristic", PrecisionHeuristic.String())
}

func TestNewEstimatorForEncoding(t *testing.T) {
	t.Run("empty encoding is heuristic", func(t *testing.T) {
		e := NewEstimatorForEncoding("")
		assert.False(t, e.Precise())
		assert.Zero(t, e.Fallbacks())
	})

	t.Run("unknown encoding falls back", func(t *testing.T) {
		e := NewEstimatorForEncoding("no_such_encoding")
		assert.False(t, e.Precise())
		assert.Equal(t, int64(1), e.Fallbacks())
		assert.Equal(t, PrecisionHeuristic, e.EstimateTokens("hello").Precision)
	})
}

func TestTiktokenTokenizer(t *testing.T) {
	tok, err := NewTiktokenTokenizer(DefaultEncoding)
	if err != nil {
		// the BPE ranks are fetched on first use
		t.Skipf("cl100k_base unavailable: %v", err)
	}

	assert.Equal(t, "tiktoken/cl100k_base", tok.Name())

	n, err := tok.CountTokens("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e := NewEstimator(tok)
	c := e.EstimateTokens("The quick brown fox jumps over the lazy dog.")
	assert.Equal(t, PrecisionExact, c.Precision)
	assert.Positive(t, c.Tokens)
}
