// Package chunk splits documents into overlapping text pieces, either with
// a recursive separator-priority splitter or an embedding-variance based
// semantic splitter.
package chunk

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/domain/chunk"
	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/internal/app/embedding"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

var errNoProvider = errors.New("chunk: semantic splitting requires an embedding provider")

// Params are the resolved sizing parameters for a single run, after any
// adaptive widening/narrowing.
type Params struct {
	ChunkSize                         int
	ChunkOverlap                      int
	SemanticBreakpointType            config.SemanticBreakpointType
	SemanticBreakpointThresholdAmount float64
	SemanticMinChunkSize              int
}

// Splitter produces chunks for a single document.
type Splitter struct {
	Provider embedding.Provider
	log      *logger.Logger
}

// New returns a Splitter. provider is only consulted by the semantic
// strategy; it may be nil when only the recursive strategy is used.
func New(provider embedding.Provider, log *logger.Logger) *Splitter {
	if log == nil {
		log = logger.NewDefault("chunk")
	}
	return &Splitter{Provider: provider, log: log}
}

// Split dispatches on strategy and stamps the parent document's metadata
// plus an ordinal onto every produced chunk.
func (s *Splitter) Split(doc document.Document, strategy config.ChunkingStrategy, params Params) ([]chunk.Chunk, error) {
	var pieces []string
	var err error

	switch strategy {
	case config.ChunkingSemantic:
		pieces, err = s.splitSemantic(doc.Content, params)
	default:
		pieces = splitRecursive(doc.Content, params.ChunkSize, params.ChunkOverlap)
	}
	if err != nil {
		s.log.WithField("source", doc.Source).Warnf("semantic split failed, falling back to recursive: %v", err)
		pieces = splitRecursive(doc.Content, params.ChunkSize, params.ChunkOverlap)
	}

	chunks := make([]chunk.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, chunk.Chunk{
			Content:  p,
			Source:   doc.Source,
			Ordinal:  i,
			Metadata: documentMetadata(doc),
		})
	}
	return chunks, nil
}

func documentMetadata(doc document.Document) map[string]string {
	return map[string]string{
		"source":   doc.Source,
		"title":    doc.Title,
		"url":      doc.URL,
		"date":     doc.Date,
		"category": strings.Join(doc.Categories, ","),
	}
}

// separators is the priority-ordered list the recursive splitter tries, from
// coarsest to finest.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// splitRecursive packs separator-delimited units into pieces, starting a
// new piece when the next unit would push the current one past chunkSize,
// and carries chunkOverlap characters of tail into the next piece. A single
// unit longer than chunkSize is not split further, and the carried tail is
// added on top of the next unit, so a piece can exceed chunkSize.
// Deterministic: the same input and parameters always produce the same
// chunk list.
func splitRecursive(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	if len([]rune(text)) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	units := splitOnSeparators(text, separators)

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit) > chunkSize {
			chunks = append(chunks, current.String())
			tail := tailOf(current.String(), chunkOverlap)
			current.Reset()
			current.WriteString(tail)
		}
		current.WriteString(unit)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitOnSeparators splits text on the first separator that actually
// occurs, moving on to the next separator only when the current one does
// not occur at all. The resulting pieces are not split further, whatever
// their length.
func splitOnSeparators(text string, seps []string) []string {
	if len(seps) == 0 {
		return []string{text}
	}
	sep := seps[0]
	if sep == "" {
		return strings.Split(text, "")
	}
	if !strings.Contains(text, sep) {
		return splitOnSeparators(text, seps[1:])
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		out = append(out, p)
	}
	return out
}

func tailOf(s string, n int) string {
	r := []rune(s)
	if n <= 0 || n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}

// splitSemantic embeds sentence-level units, measures adjacent cosine
// distance, and introduces a break wherever distance exceeds the
// configured threshold. Pieces smaller than SemanticMinChunkSize are
// merged into a neighbour.
func (s *Splitter) splitSemantic(text string, params Params) ([]string, error) {
	units := splitOnSeparators(text, []string{"\n\n", ". "})
	units = nonEmpty(units)
	if len(units) <= 1 {
		return splitRecursive(text, firstPositive(params.ChunkSize, 1000), params.ChunkOverlap), nil
	}
	if s.Provider == nil {
		return nil, errNoProvider
	}

	vectors, err := s.Provider.Embed(context.Background(), units)
	if err != nil {
		return nil, err
	}

	distances := make([]float64, 0, len(units)-1)
	for i := 1; i < len(vectors); i++ {
		distances = append(distances, 1-cosineSimilarity(vectors[i-1], vectors[i]))
	}

	threshold := breakpointThreshold(distances, params.SemanticBreakpointType, params.SemanticBreakpointThresholdAmount)

	var pieces []string
	var current strings.Builder
	current.WriteString(units[0])
	for i, d := range distances {
		if d > threshold {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		current.WriteString(units[i+1])
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	return mergeSmall(pieces, params.SemanticMinChunkSize), nil
}

func nonEmpty(units []string) []string {
	out := units[:0]
	for _, u := range units {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

func firstPositive(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

func mergeSmall(pieces []string, minSize int) []string {
	if minSize <= 0 {
		return pieces
	}
	var out []string
	for _, p := range pieces {
		if len(out) > 0 && len([]rune(out[len(out)-1])) < minSize {
			out[len(out)-1] += p
			continue
		}
		out = append(out, p)
	}
	if n := len(out); n > 1 && len([]rune(out[n-1])) < minSize {
		out[n-2] += out[n-1]
		out = out[:n-1]
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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

// breakpointThreshold derives the distance above which a break is inserted,
// per the configured method.
func breakpointThreshold(distances []float64, kind config.SemanticBreakpointType, amount float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	switch kind {
	case config.BreakpointStdDev:
		mean, stddev := meanStdDev(distances)
		return mean + amount*stddev
	case config.BreakpointIQR:
		q1, q3 := quartiles(distances)
		return q3 + amount*(q3-q1)
	case config.BreakpointGradient:
		return gradientPeak(distances)
	default: // percentile
		return percentile(distances, amount)
	}
}

func meanStdDev(xs []float64) (mean, stddev float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func quartiles(xs []float64) (q1, q3 float64) {
	return percentile(xs, 25), percentile(xs, 75)
}

// gradientPeak returns the distance value at the point of steepest increase
// between consecutive sorted distances.
func gradientPeak(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) < 2 {
		return sorted[0]
	}
	maxGradIdx, maxGrad := 0, -math.MaxFloat64
	for i := 1; i < len(sorted); i++ {
		grad := sorted[i] - sorted[i-1]
		if grad > maxGrad {
			maxGrad = grad
			maxGradIdx = i
		}
	}
	return sorted[maxGradIdx]
}
