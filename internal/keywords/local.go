package keywords

import (
	"context"

	"github.com/davitacols/recall-sub001/internal/text"
)

// LocalProvider derives keywords deterministically from the title tokens.
// It stands in for the Summarization Service when no API key is configured.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Keywords(ctx context.Context, title, body string) ([]string, error) {
	tokens := text.UniqueTokens(title)
	if len(tokens) > maxKeywords {
		tokens = tokens[:maxKeywords]
	}
	return tokens, nil
}

func (l *LocalProvider) Name() string { return "local" }
