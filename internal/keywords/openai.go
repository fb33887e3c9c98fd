package keywords

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v2"

	"github.com/davitacols/recall-sub001/internal/common"
)

const maxKeywords = 10

// OpenAIProvider asks a chat model for a comma-separated keyword list.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider wraps an OpenAI client. The model is taken from
// OPENAI_CHAT_MODEL when set.
func NewOpenAIProvider(client openai.Client) *OpenAIProvider {
	model := os.Getenv("OPENAI_CHAT_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	common.Logger().Info("keywords: OpenAI provider configured", "model", model)
	return &OpenAIProvider{client: client, model: model}
}

func (o *OpenAIProvider) Keywords(ctx context.Context, title, body string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Extract up to %d short topical keywords from the following content. "+
			"Reply with a single comma-separated line, no numbering.\n\nTitle: %s\n\n%s",
		maxKeywords, title, body)
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		common.Logger().Error("keywords: extraction request failed", "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	return parseKeywordLine(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func parseKeywordLine(line string) []string {
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		keyword := strings.ToLower(strings.Trim(strings.TrimSpace(part), ".\"'"))
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
