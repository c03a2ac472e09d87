package service

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/lo"

	"github.com/quecocinohoy/backend/internal/models"
)

// NormalizeIngredients lower-cases, trims and de-duplicates ingredient names,
// dropping empty entries. The result is sorted.
func NormalizeIngredients(ingredients []string) []string {
	cleaned := lo.FilterMap(ingredients, func(item string, _ int) (string, bool) {
		item = strings.ToLower(strings.Join(strings.Fields(item), " "))
		return item, item != ""
	})
	cleaned = lo.Uniq(cleaned)
	sort.Strings(cleaned)
	return cleaned
}

// IngredientEmbedding hashes each ingredient into a bucket and returns the
// L2-normalized bucket counts. Equal ingredient sets give equal vectors.
func IngredientEmbedding(ingredients []string) pgvector.Vector {
	vec := make([]float32, models.EmbeddingDimensions)
	for _, ing := range NormalizeIngredients(ingredients) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(ing))
		vec[h.Sum32()%models.EmbeddingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return pgvector.NewVector(vec)
}
