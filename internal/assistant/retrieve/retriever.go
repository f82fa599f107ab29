// Package retrieve answers "what do we know about this" by embedding the
// canonical query and ranking passages from the content index.
package retrieve

import (
	"context"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

type Retriever struct {
	embedder model.Embedder
	index    *Index
	topK     int
}

func New(cfg model.RetrieverConfig, embedder model.Embedder, index *Index) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// Retrieve returns up to topK passages ranked by descending relevance.
// No matches is a valid result, not an error; embedder unavailability also
// degrades to an empty result so the pipeline can still answer from history.
func (r *Retriever) Retrieve(ctx context.Context, canonicalText string) model.RetrievedContext {
	embedding, err := r.embedder.Embed(ctx, canonicalText)
	if err != nil {
		logx.Warn().Err(err).Msg("query embedding failed, continuing without retrieved context")
		return model.RetrievedContext{}
	}

	entries := r.index.Search(embedding, r.topK)
	passages := make(model.RetrievedContext, 0, len(entries))
	for i, e := range entries {
		passages = append(passages, model.Passage{
			Text:     e.Text,
			SourceID: e.SourceID,
			Rank:     i,
		})
	}

	logx.Debug().Int("passages", len(passages)).Int("index_version", r.index.Version()).Msg("context retrieved")
	return passages
}
