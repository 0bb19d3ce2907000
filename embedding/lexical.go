package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// LexicalEncoder is an offline encoder that hashes word stems into buckets
// and L2-normalises the counts. It is deterministic and needs no network.
type LexicalEncoder struct {
	dimension int
}

const stemLength = 5

var (
	_ Encoder = (*LexicalEncoder)(nil)

	stopWords = lo.SliceToMap([]string{
		"a", "an", "and", "are", "as", "at", "be", "by", "do", "does", "for", "from", "i", "in",
		"is", "it", "me", "my", "of", "on", "or", "our", "so", "that", "the", "this", "to",
		"was", "what", "with", "you", "your",
	}, func(w string) (string, struct{}) { return w, struct{}{} })
)

func NewLexicalEncoder(dimension int) *LexicalEncoder {
	return &LexicalEncoder{dimension: dimension}
}

func (e *LexicalEncoder) Encode(_ context.Context, task Task, texts ...string) ([][]float32, error) {
	return lo.Map(texts, func(text string, _ int) []float32 {
		return e.encode(task.StripPrefix(text))
	}), nil
}

func (e *LexicalEncoder) encode(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimension)] += 1
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Tokenize lowercases text, splits it on anything that is not a letter or a
// digit, drops stop words and truncates each token to a short stem.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := stopWords[f]; ok {
			continue
		}
		if r := []rune(f); len(r) > stemLength {
			f = string(r[:stemLength])
		}
		tokens = append(tokens, f)
	}
	return tokens
}
