package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/campusconnect-poc/server/internal/assistant/capability"
	"github.com/campusconnect-poc/server/internal/assistant/graph"
	"github.com/campusconnect-poc/server/internal/assistant/graph/nodes"
	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/campusconnect-poc/server/internal/assistant/normalize"
	"github.com/campusconnect-poc/server/internal/assistant/repo"
	"github.com/campusconnect-poc/server/internal/assistant/retrieve"
	"github.com/campusconnect-poc/server/internal/assistant/safety"
	"github.com/campusconnect-poc/server/internal/core"
	logx "github.com/campusconnect-poc/server/pkg/logger"
	pkgredis "github.com/campusconnect-poc/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the pipeline,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Normalizer   model.NormalizerConfig
	Safety       model.SafetyConfig
	Retriever    model.RetrieverConfig
	Response     model.ResponseModelConfig
	Conversation model.ConversationConfig
	Capability   model.CapabilityConfig
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl := time.Duration(0)
	if cfg.Conversation.TTL != "0" {
		ttl, err = time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", cfg.Conversation.TTL, err)
		}
	}

	index, err := retrieve.LoadSnapshot(cfg.Retriever.IndexPath)
	if err != nil {
		log.Fatalf("Failed to load content index: %v", err)
	}
	logx.Info().Int("index_version", index.Version()).Msg("content index loaded")

	timeout := time.Duration(cfg.Capability.TimeoutSeconds) * time.Second
	translate := capability.NewLibreTranslateClient(cfg.Capability.TranslateURL, "", timeout)

	chatModel, err := nodes.NewResponseChatModel(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Config:  &cfg.Response,
	})
	if err != nil {
		log.Fatalf("Failed to create response model: %v", err)
	}

	assistant, err := graph.BuildPipeline(ctx, graph.Config{
		Normalizer: normalize.New(cfg.Normalizer,
			capability.NewVoskTranscriber(cfg.Capability.TranscriberURL, timeout),
			translate,
			translate,
		),
		Gate: safety.NewGate(cfg.Safety,
			capability.NewDetoxifyScorer(cfg.Capability.ToxicityURL, timeout),
		),
		Retriever: retrieve.New(cfg.Retriever,
			capability.NewOllamaEmbedder(cfg.Capability.OllamaURL, cfg.Capability.EmbedModel, timeout),
			index,
		),
		ChatModel:    chatModel,
		ModelName:    cfg.Response.Model,
		Turns:        repo.NewRedisTurnRepository(rdb, ttl),
		Conversation: cfg.Conversation,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Code-mixed Hinglish fee deadline question",
			query:       "Hostel fee kab dena hai?",
		},
		{
			description: "Follow-up in the same thread",
			query:       "Can I pay it in installments?",
		},
		{
			description: "Query carrying PII (should be refused)",
			query:       "My aadhaar number is 1234 5678 9012, can you check my admission status?",
		},
	}

	threadID := "demo-thread-001"
	userID := "demo-user-001"

	for i, test := range testQueries {
		fmt.Printf("\nQuery %d: %s\n", i+1, test.description)
		fmt.Printf("> %s\n", test.query)

		answer, err := assistant.ProcessQuery(ctx, model.Query{
			ThreadID: threadID,
			UserID:   userID,
			Text:     test.query,
		})
		if err != nil {
			log.Fatalf("Failed to process query %d: %v", i+1, err)
		}

		fmt.Printf("Answer: %s\n", answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Printf("Sources: %v\n", answer.Sources)
		}
		if !answer.SafetyDisposition.Safe {
			fmt.Printf("Blocked: %s\n", answer.SafetyDisposition.Reason)
		}
	}

	history, err := assistant.RecentHistory(ctx, userID, threadID, 10)
	if err != nil {
		log.Fatalf("Failed to read thread history: %v", err)
	}
	fmt.Printf("\nThread history (%d turns):\n", len(history))
	for _, turn := range history {
		fmt.Printf("  [%s] %s\n", turn.Role, turn.Text)
	}
}
