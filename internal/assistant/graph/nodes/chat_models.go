package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

// ChatModelConfig holds what is needed to construct the response model.
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Config  *model.ResponseModelConfig
}

// NewResponseChatModel creates the Gemini chat model that backs the grounded
// generation branch.
func NewResponseChatModel(ctx context.Context, cfg ChatModelConfig) (*gemini.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Config.Model,
		Temperature: &cfg.Config.Temperature,
		MaxTokens:   &cfg.Config.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return chatModel, nil
}
