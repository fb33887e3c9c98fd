// Package keywords is the client for the external Summarization Service,
// which supplies AI-derived keywords per entity. Its absence degrades
// gracefully: the local provider derives keywords from the title instead,
// and no caller ever sees a hard failure from provider selection.
package keywords

import (
	"context"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/davitacols/recall-sub001/internal/common"
)

// Provider extracts a keyword set from entity text.
type Provider interface {
	Keywords(ctx context.Context, title, body string) ([]string, error)
	Name() string
}

// NewProvider selects the OpenAI-backed provider when OPENAI_API_KEY is set,
// falling back to the local heuristic provider otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
			logger.Info("keywords: using custom OpenAI endpoint", "endpoint", endpoint)
			opts = append(opts, option.WithBaseURL(endpoint))
		}
		client := openai.NewClient(opts...)
		logger.Info("keywords: OpenAI provider selected")
		return NewOpenAIProvider(client)
	}
	logger.Warn("keywords: OPENAI_API_KEY not set; falling back to local provider")
	return NewLocalProvider()
}
