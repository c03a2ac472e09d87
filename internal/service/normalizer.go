package service

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/model"
)

// Fallbacks for free-text recipe fields the model left out.
const (
	FallbackTitle           = "Receta sin título"
	FallbackDescription     = ""
	FallbackPreparationTime = "No especificado"
	FallbackDifficulty      = "No especificada"
)

var codeFence = regexp.MustCompile("(?s)^\\s*```[A-Za-z0-9_-]*\\s*\n?(.*?)\\s*```\\s*$")

// NormalizeRecipe turns raw model output into a Recipe. Only a payload with no
// parseable JSON object fails; every field coercion is total.
func NormalizeRecipe(raw string) (*model.Recipe, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}
	return NormalizeRecipeObject(obj), nil
}

// NormalizeRecipeObject coerces an already decoded object into a Recipe.
func NormalizeRecipeObject(obj map[string]any) *model.Recipe {
	return &model.Recipe{
		ID:                 uuid.NewString(),
		Title:              stringField(obj, "title", FallbackTitle),
		Description:        stringField(obj, "description", FallbackDescription),
		PreparationTime:    stringField(obj, "preparationTime", FallbackPreparationTime),
		Difficulty:         stringField(obj, "difficulty", FallbackDifficulty),
		Calories:           intValue(obj["calories"]),
		IngredientsNeeded:  stringSlice(obj["ingredientsNeeded"]),
		MissingIngredients: stringSlice(obj["missingIngredients"]),
		Instructions:       stringSlice(obj["instructions"]),
		Macros:             macrosValue(obj["macros"]),
	}
}

func extractObject(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, parseError("no JSON object in model output")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("model output is not valid JSON").
			WithHint("No pudimos interpretar la receta generada. Intentá de nuevo.").
			Mark(ierr.ErrGenerationParse)
	}
	if obj == nil {
		return nil, parseError("model output is a null object")
	}
	return obj, nil
}

func parseError(msg string) error {
	return ierr.NewError(msg).
		WithHint("No pudimos interpretar la receta generada. Intentá de nuevo.").
		Mark(ierr.ErrGenerationParse)
}

func stringField(obj map[string]any, key, fallback string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return fallback
	}
	return stringify(v)
}

// stringify renders a decoded JSON value the way JavaScript's String() renders
// scalars. Objects and arrays become compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e+0", "e+", 1)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	return lo.Map(arr, func(item any, _ int) string {
		return stringify(item)
	})
}

func intValue(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func macrosValue(v any) *model.Macros {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &model.Macros{
		Protein: intValue(obj["protein"]),
		Carbs:   intValue(obj["carbs"]),
		Fat:     intValue(obj["fat"]),
	}
}
