package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/campusconnect-poc/server/internal/assistant/graph/conversations"
	"github.com/campusconnect-poc/server/internal/assistant/graph/prompts"
	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/campusconnect-poc/server/internal/assistant/normalize"
	"github.com/campusconnect-poc/server/internal/assistant/retrieve"
	"github.com/campusconnect-poc/server/internal/assistant/safety"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

// Graph node names.
const (
	NodeNormalizer        = "Normalizer"
	NodeSafetyGate        = "SafetyGate"
	NodeRefusal           = "Refusal"
	NodeRetriever         = "Retriever"
	NodeResponseAssembler = "ResponseAssembler"
	NodeResponseGenerator = "ResponseGenerator"
	NodeAnswerFinalizer   = "AnswerFinalizer"
)

// NewNormalizerPreHandler seeds the per-invocation state before any stage runs.
func NewNormalizerPreHandler() func(context.Context, model.Query, *model.PipelineState) (model.Query, error) {
	return func(ctx context.Context, in model.Query, s *model.PipelineState) (model.Query, error) {
		s.QueryID = uuid.NewString()
		s.ThreadID = in.ThreadID
		s.UserID = in.UserID
		s.Gated = nil
		s.History = nil
		s.Context = nil
		return in, nil
	}
}

// NewNormalizerNode creates the node that resolves raw input into canonical
// working-language text. Its errors (missing fields, failed transcription)
// are the only ones that abort the pipeline without an answer.
func NewNormalizerNode(n *normalize.Normalizer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.Query) (model.NormalizedQuery, error) {
		nq, err := n.Normalize(ctx, in)
		if err != nil {
			return model.NormalizedQuery{}, err
		}
		logx.Debug().
			Str("thread_id", nq.ThreadID).
			Str("detected_language", nq.DetectedLanguage).
			Bool("translation_degraded", nq.TranslationDegraded).
			Msg("query normalized")
		return nq, nil
	})
}

// NewSafetyGateNode attaches the safety verdict to the normalized query.
func NewSafetyGateNode(gate *safety.Gate) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.NormalizedQuery) (model.GatedQuery, error) {
		return gate.Check(ctx, in), nil
	})
}

// NewSafetyGatePostHandler stores the verdict in state and opens the audit
// trail: the user turn is recorded here for every query that got this far,
// blocked ones included. The history returned alongside is what the grounded
// prompt may use; the current turn is never part of it.
func NewSafetyGatePostHandler(mgr *conversations.Manager) func(context.Context, model.GatedQuery, *model.PipelineState) (model.GatedQuery, error) {
	return func(ctx context.Context, out model.GatedQuery, s *model.PipelineState) (model.GatedQuery, error) {
		gated := out
		s.Gated = &gated

		history, err := mgr.BeginTurn(ctx, out.UserID, out.ThreadID, out.CanonicalText)
		if err != nil {
			logx.Error().Err(err).Str("query_id", s.QueryID).Msg("failed to record user turn")
			return out, fmt.Errorf("record user turn: %w", err)
		}
		s.History = history
		return out, nil
	}
}

// NewSafetyCondition routes blocked queries to the refusal node and safe ones
// on to retrieval.
func NewSafetyCondition() func(context.Context, model.GatedQuery) (string, error) {
	return func(ctx context.Context, in model.GatedQuery) (string, error) {
		if !in.Verdict.Safe {
			logx.Debug().Str("reason", string(in.Verdict.Reason)).Msg("routing to refusal")
			return NodeRefusal, nil
		}
		return NodeRetriever, nil
	}
}

// NewRefusalNode produces the deterministic refusal for a blocked query.
// Retrieved context and conversation history never reach this branch.
func NewRefusalNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.GatedQuery) (*schema.Message, error) {
		var text string
		switch in.Verdict.Reason {
		case model.ReasonPII:
			text = prompts.PIIRefusal
		default:
			text = prompts.ToxicityRefusal
		}
		return schema.AssistantMessage(text, nil), nil
	})
}

// NewRetrieverNode fetches the top-K passages for the canonical query.
func NewRetrieverNode(r *retrieve.Retriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.GatedQuery) (model.RetrievedContext, error) {
		return r.Retrieve(ctx, in.CanonicalText), nil
	})
}

// NewRetrieverPostHandler keeps the retrieved passages in state so the
// finalizer can cite exactly what the prompt saw.
func NewRetrieverPostHandler() func(context.Context, model.RetrievedContext, *model.PipelineState) (model.RetrievedContext, error) {
	return func(ctx context.Context, out model.RetrievedContext, s *model.PipelineState) (model.RetrievedContext, error) {
		s.Context = out
		return out, nil
	}
}

// NewResponseAssemblerNode builds the grounded prompt from history, context
// and the question.
func NewResponseAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RetrievedContext) ([]*schema.Message, error) {
		var gated model.GatedQuery
		var history []model.ConversationTurn
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if s.Gated == nil {
				return fmt.Errorf("missing gated query in state")
			}
			gated = *s.Gated
			history = s.History
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		promptText, err := prompts.RenderGrounded(ctx, prompts.GroundedInput{
			History:  conversations.FormatHistory(history),
			Context:  in,
			Question: gated.CanonicalText,
			Language: gated.DetectedLanguage,
		})
		if err != nil {
			return nil, fmt.Errorf("render grounded prompt: %w", err)
		}

		return []*schema.Message{schema.UserMessage(promptText)}, nil
	})
}

// ChatModel is the narrow slice of the eino chat model the generator needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// NewResponseGeneratorNode invokes the generation model once. A model failure
// degrades to the fixed apology; the pipeline never loses its answer here.
func NewResponseGeneratorNode(chatModel ChatModel) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		out, err := chatModel.Generate(ctx, in)
		if err != nil {
			logx.Warn().Err(err).Msg("generation failed, returning apology answer")
			return schema.AssistantMessage(prompts.GenerationApology, nil), nil
		}
		if out == nil || out.Content == "" {
			logx.Warn().Msg("generation returned empty content, returning apology answer")
			return schema.AssistantMessage(prompts.GenerationApology, nil), nil
		}
		return out, nil
	})
}

// NewResponseGeneratorPostHandler logs token usage when the provider reports it.
func NewResponseGeneratorPostHandler(modelName string) func(context.Context, *schema.Message, *model.PipelineState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.PipelineState) (*schema.Message, error) {
		if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			logx.Debug().
				Str("query_id", s.QueryID).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Msg("LLM usage")
		}
		return out, nil
	}
}

// NewAnswerFinalizerNode closes the audit trail and assembles the Answer.
// Both the refusal and the grounded branch converge here, so every processed
// query ends with the assistant turn persisted and an Answer built.
func NewAnswerFinalizerNode(mgr *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.Answer, error) {
		if in == nil {
			return nil, fmt.Errorf("finalizer received nil message")
		}

		var verdict model.SafetyVerdict
		var sources []string
		var userID, threadID, queryID string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if s.Gated == nil {
				return fmt.Errorf("missing gated query in state")
			}
			verdict = s.Gated.Verdict
			sources = s.Context.SourceIDs()
			userID = s.UserID
			threadID = s.ThreadID
			queryID = s.QueryID
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mgr.CompleteTurn(ctx, userID, threadID, in.Content); err != nil {
			logx.Error().Err(err).Str("query_id", queryID).Msg("failed to record assistant turn")
			return nil, fmt.Errorf("record assistant turn: %w", err)
		}

		if sources == nil {
			sources = []string{}
		}
		return &model.Answer{
			Text:              in.Content,
			Sources:           sources,
			SafetyDisposition: verdict,
		}, nil
	})
}
