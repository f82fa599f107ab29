// Package graph wires the query pipeline as an Eino graph:
// normalize → safety gate → (refusal | retrieve → assemble → generate) →
// finalize. Each query runs the graph exactly once; blocked queries and
// degraded capabilities still terminate in an Answer.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/campusconnect-poc/server/internal/assistant/graph/conversations"
	"github.com/campusconnect-poc/server/internal/assistant/graph/nodes"
	"github.com/campusconnect-poc/server/internal/assistant/graph/observers"
	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/campusconnect-poc/server/internal/assistant/normalize"
	"github.com/campusconnect-poc/server/internal/assistant/retrieve"
	"github.com/campusconnect-poc/server/internal/assistant/safety"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

// maxRunSteps bounds a single invocation; the pipeline is linear with one
// branch, so anything past this indicates a wiring bug.
const maxRunSteps = 20

// Assistant is the pipeline surface consumed by collaborators (HTTP layer,
// thread CRUD): one entry point per query plus read-only history access.
type Assistant interface {
	// ProcessQuery runs one query through the pipeline. It returns an error
	// only for missing identifiers or failed transcription; every other
	// condition is absorbed into the Answer.
	ProcessQuery(ctx context.Context, q model.Query) (*model.Answer, error)

	// RecentHistory returns at most n turns of the thread, oldest first.
	RecentHistory(ctx context.Context, userID, threadID string, n int) ([]model.ConversationTurn, error)
}

// Config holds everything needed to compose the pipeline end-to-end.
type Config struct {
	Normalizer *normalize.Normalizer
	Gate       *safety.Gate
	Retriever  *retrieve.Retriever
	ChatModel  nodes.ChatModel
	ModelName  string
	Turns      model.TurnRepository

	Conversation model.ConversationConfig
}

type pipelineRunner struct {
	runnable compose.Runnable[model.Query, *model.Answer]
	manager  *conversations.Manager
}

func (r *pipelineRunner) ProcessQuery(ctx context.Context, q model.Query) (*model.Answer, error) {
	return r.runnable.Invoke(ctx, q, compose.WithCallbacks(observers.NewAllCallbacks()))
}

func (r *pipelineRunner) RecentHistory(ctx context.Context, userID, threadID string, n int) ([]model.ConversationTurn, error) {
	return r.manager.Recent(ctx, userID, threadID, n)
}

// BuildPipeline validates the config, compiles the graph, and returns the
// Assistant facade.
func BuildPipeline(ctx context.Context, cfg Config) (Assistant, error) {
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is nil")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("safety gate is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if cfg.Turns == nil {
		return nil, fmt.Errorf("turn repository is nil")
	}

	manager := conversations.NewManager(cfg.Turns, cfg.Conversation)

	builder := &pipelineBuilder{
		config:  &cfg,
		manager: manager,
		graph: compose.NewGraph[model.Query, *model.Answer](
			compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
				return &model.PipelineState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("query pipeline built successfully")
	return &pipelineRunner{runnable: runnable, manager: manager}, nil
}

type pipelineBuilder struct {
	config  *Config
	manager *conversations.Manager
	graph   *compose.Graph[model.Query, *model.Answer]
}

// addNodes adds all processing nodes to the graph.
func (b *pipelineBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeNormalizer,
		nodes.NewNormalizerNode(b.config.Normalizer),
		compose.WithStatePreHandler(nodes.NewNormalizerPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeSafetyGate,
		nodes.NewSafetyGateNode(b.config.Gate),
		compose.WithStatePostHandler(nodes.NewSafetyGatePostHandler(b.manager)),
	)

	b.graph.AddLambdaNode(nodes.NodeRefusal,
		nodes.NewRefusalNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeRetriever,
		nodes.NewRetrieverNode(b.config.Retriever),
		compose.WithStatePostHandler(nodes.NewRetrieverPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeResponseAssembler,
		nodes.NewResponseAssemblerNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeResponseGenerator,
		nodes.NewResponseGeneratorNode(b.config.ChatModel),
		compose.WithStatePostHandler(nodes.NewResponseGeneratorPostHandler(b.config.ModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeAnswerFinalizer,
		nodes.NewAnswerFinalizerNode(b.manager),
	)
}

// addEdges creates the main flow connections between nodes.
func (b *pipelineBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeNormalizer},
		{nodes.NodeNormalizer, nodes.NodeSafetyGate},
		{nodes.NodeRetriever, nodes.NodeResponseAssembler},
		{nodes.NodeResponseAssembler, nodes.NodeResponseGenerator},
		{nodes.NodeRefusal, nodes.NodeAnswerFinalizer},
		{nodes.NodeResponseGenerator, nodes.NodeAnswerFinalizer},
		{nodes.NodeAnswerFinalizer, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the blocked/safe routing after the gate.
func (b *pipelineBuilder) addBranches() error {
	safetyBranch := compose.NewGraphBranch(
		nodes.NewSafetyCondition(),
		map[string]bool{
			nodes.NodeRefusal:   true,
			nodes.NodeRetriever: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeSafetyGate, safetyBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding safety branch")
		return fmt.Errorf("error adding safety branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *pipelineBuilder) compile(ctx context.Context) (compose.Runnable[model.Query, *model.Answer], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
