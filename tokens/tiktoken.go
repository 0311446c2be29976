package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by current chat models.
const DefaultEncoding = "cl100k_base"

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding. The encoder is
// loaded once and shared by all counts.
type TiktokenTokenizer struct {
	encoding string
	tok      *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	tok, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{encoding: encoding, tok: tok}, nil
}

func (t *TiktokenTokenizer) CountTokens(text string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tiktoken %s: %v", t.encoding, r)
		}
	}()
	return len(t.tok.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Name() string {
	return "tiktoken/" + t.encoding
}
