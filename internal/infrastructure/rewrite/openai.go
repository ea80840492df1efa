package rewrite

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// minRewriteLength is the shortest text worth paraphrasing. Anything
// shorter passes through unchanged.
const minRewriteLength = 10

// promptPlaceholder is substituted with the message text inside the
// prompt template.
const promptPlaceholder = "{message_text}"

// OpenAIRewriter paraphrases message text through the chat completions
// API using a user-supplied prompt template.
type OpenAIRewriter struct {
	client   *openai.Client
	model    string
	template string
	logger   zerolog.Logger
}

// Config holds configuration for the rewriter
type Config struct {
	APIKey       string
	Model        string // default gpt-4o-mini
	TemplateFile string // prompt template containing {message_text}
	Logger       zerolog.Logger
}

// New creates a rewriter from the given config. The template file is
// read once at startup.
func New(cfg Config) (*OpenAIRewriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	template := "Rewrite the following message keeping its meaning and language:\n\n" + promptPlaceholder
	if cfg.TemplateFile != "" {
		loaded, err := loadTemplate(cfg.TemplateFile)
		if err != nil {
			return nil, err
		}
		template = loaded
	}

	return &OpenAIRewriter{
		client:   openai.NewClient(cfg.APIKey),
		model:    cfg.Model,
		template: template,
		logger:   cfg.Logger.With().Str("component", "rewriter").Logger(),
	}, nil
}

// loadTemplate reads a prompt template file. Lines starting with '#'
// are comments. The result must contain the message placeholder.
func loadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}

	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	template := strings.TrimSpace(strings.Join(kept, "\n"))

	if !strings.Contains(template, promptPlaceholder) {
		return "", fmt.Errorf("prompt template %s does not contain %s", path, promptPlaceholder)
	}
	return template, nil
}

// Rewrite paraphrases text through the model. Short inputs are
// returned unchanged; API failures and empty completions map to
// ErrRewriteFailed so the caller can fall back to the original text.
func (r *OpenAIRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if len([]rune(text)) < minRewriteLength {
		return text, nil
	}

	prompt := strings.ReplaceAll(r.template, promptPlaceholder, text)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("rewrite request failed")
		return "", fmt.Errorf("%w: %v", domain.ErrRewriteFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", domain.ErrRewriteFailed)
	}

	rewritten := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rewritten == "" {
		return "", fmt.Errorf("%w: blank completion", domain.ErrRewriteFailed)
	}

	r.logger.Debug().
		Int("original_len", len(text)).
		Int("rewritten_len", len(rewritten)).
		Msg("text rewritten")
	return rewritten, nil
}

var _ domain.Rewriter = (*OpenAIRewriter)(nil)

// NoopRewriter returns text unchanged, used when rewriting is disabled.
type NoopRewriter struct{}

func (NoopRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	return text, nil
}

var _ domain.Rewriter = NoopRewriter{}
