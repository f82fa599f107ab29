package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/campusconnect-poc/server/internal/assistant/model"
)

//go:embed template/response_prompt.txt
var groundedPrompt string

// AssistantName is the persona the grounded prompt answers as.
const AssistantName = "CampusConnect AI"

// GroundedInput carries everything the grounded prompt concatenates: prior
// turns, retrieved passages, the question, and the reply language.
type GroundedInput struct {
	History  string
	Context  model.RetrievedContext
	Question string
	Language string
}

// RenderGrounded renders the grounded user prompt via the Eino prompt
// component (which also emits prompt callbacks).
func RenderGrounded(ctx context.Context, in GroundedInput) (string, error) {
	lang := strings.TrimSpace(in.Language)
	if lang == "" {
		lang = model.WorkingLanguage
	}

	passages := make([]string, 0, len(in.Context))
	for _, p := range in.Context {
		passages = append(passages, p.Text)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(groundedPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"AssistantName": AssistantName,
		"History":       in.History,
		"Context":       strings.Join(passages, "\n"),
		"Question":      in.Question,
		"Language":      lang,
	})
	if err != nil {
		return "", fmt.Errorf("grounded prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("grounded prompt render: empty result")
	}
	return msgs[0].Content, nil
}
