// Package embed turns text into vectors for similarity search.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder maps texts to vectors. The result has one vector per input, in
// input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// HashEmbedder is a deterministic bag-of-words embedder. Each term is hashed
// into one of Dim buckets and the vector is L2-normalized. It needs no model
// and is used offline and in tests.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder creates a HashEmbedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim < 1 {
		dim = 256
	}
	return &HashEmbedder{Dim: dim}
}

// Embed hashes each text.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.Dim)
	for _, term := range Terms(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(term))
		v[f.Sum32()%uint32(h.Dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Terms lowercases text and splits it into terms. Runs of letters and digits
// form one term, except that Han characters each form their own term so
// that Chinese text without spaces still yields useful overlap.
func Terms(text string) []string {
	var (
		terms []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			terms = append(terms, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}
