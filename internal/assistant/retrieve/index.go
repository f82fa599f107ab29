package retrieve

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// IndexEntry is one embedded passage in the content index snapshot.
type IndexEntry struct {
	SourceID  string    `json:"source_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// IndexSnapshot is the serialized form of the content index, produced by the
// offline embedding job and consumed read-only here.
type IndexSnapshot struct {
	Version int          `json:"version"`
	Entries []IndexEntry `json:"entries"`
}

// Index is an in-memory similarity index over embedded passages.
type Index struct {
	mu      sync.RWMutex
	entries []IndexEntry
	version int
}

func NewIndex() *Index {
	return &Index{}
}

// LoadSnapshot reads an index snapshot file and replaces the index contents.
// Entries without a resolvable source id cannot be cited and are dropped.
func LoadSnapshot(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index snapshot: %w", err)
	}
	var snap IndexSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse index snapshot: %w", err)
	}

	idx := NewIndex()
	idx.Replace(snap)
	return idx, nil
}

// Replace swaps in a new snapshot, filtering uncitable entries.
func (idx *Index) Replace(snap IndexSnapshot) {
	kept := make([]IndexEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if e.SourceID == "" || e.Text == "" || len(e.Embedding) == 0 {
			continue
		}
		kept = append(kept, e)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = kept
	idx.version = snap.Version
}

// Version returns the loaded snapshot version.
func (idx *Index) Version() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.version
}

type scoredEntry struct {
	entry IndexEntry
	score float64
}

// Search returns the topK most similar entries by cosine similarity,
// descending. The sort is stable, so ties keep index insertion order.
func (idx *Index) Search(embedding []float32, topK int) []IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scored := make([]scoredEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		scored = append(scored, scoredEntry{entry: e, score: cosineSimilarity(embedding, e.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	if topK < 0 {
		topK = 0
	}
	results := make([]IndexEntry, topK)
	for i := 0; i < topK; i++ {
		results[i] = scored[i].entry
	}
	return results
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
