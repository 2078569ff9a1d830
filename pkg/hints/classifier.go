package hints

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/textmatch"
)

const (
	classifierEncoding   = "cl100k_base"
	classifierTokenLimit = 2000

	classifierSystemPrompt = "You label French utility and transit bills. " +
		"Answer with exactly one of the offered labels and nothing else."
)

// Classifier picks an expense-type label for a bill through an LLM. A nil
// Classifier is valid and means classification is disabled.
type Classifier struct {
	client openai.Client
	model  openai.ChatModel
	limit  int
	enc    *tiktoken.Tiktoken
	log    *zap.Logger
}

// NewClassifier builds a Classifier, or nil when apiKey is empty. The
// tokenizer is best-effort: when its vocabulary cannot be loaded the prompt
// is truncated by runes instead.
func NewClassifier(apiKey string, log *zap.Logger) *Classifier {
	if apiKey == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	enc, err := tiktoken.GetEncoding(classifierEncoding)
	if err != nil {
		log.Warn("tokenizer unavailable, truncating prompts by runes", zap.Error(err))
		enc = nil
	}
	return &Classifier{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
		limit:  classifierTokenLimit,
		enc:    enc,
		log:    log.Named("classifier"),
	}
}

// Enabled reports whether classification can run.
func (c *Classifier) Enabled() bool {
	return c != nil
}

// Classify asks the model to pick one of labels for the bill text. The
// answer must name one of the offered labels or an error is returned;
// callers fall back to the rule-based label on any error.
func (c *Classifier) Classify(ctx context.Context, billText string, labels []string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("classifier disabled")
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("no labels offered")
	}

	prompt := fmt.Sprintf("Labels: %s\n\nBill text:\n%s",
		strings.Join(labels, ", "), c.truncate(billText))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("classify bill text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classify bill text: empty completion")
	}

	answer := resp.Choices[0].Message.Content
	for _, label := range labels {
		if textmatch.ContainsFold(answer, label) {
			return label, nil
		}
	}
	return "", fmt.Errorf("classify bill text: answer %q names no offered label", answer)
}

// truncate bounds the bill text to the prompt budget, by tokens when the
// tokenizer loaded and by runes otherwise (four runes per token is a safe
// over-estimate for this corpus).
func (c *Classifier) truncate(text string) string {
	if c.enc == nil {
		runes := []rune(text)
		if len(runes) <= 4*c.limit {
			return text
		}
		return string(runes[:4*c.limit])
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.limit {
		return text
	}
	return c.enc.Decode(tokens[:c.limit])
}
