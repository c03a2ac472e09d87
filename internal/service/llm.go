package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/quecocinohoy/backend/config"
	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/types"
)

// Message represents a message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a request to the chat completions API
type Request struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
}

// Response is the part of the chat completions response we read.
type Response struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// LLMService talks to a DeepSeek-compatible chat completions endpoint.
type LLMService struct {
	apiKey string
	apiURL string
	model  string
	client *retryablehttp.Client
	log    *logger.Logger
}

// NewLLMService creates a new LLMService instance
func NewLLMService(cfg config.LLMConfig, log *logger.Logger) *LLMService {
	log = log.Named("llm")
	return &LLMService{
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		model:  cfg.Model,
		client: newRetryableClient(cfg.Timeout, 2, log),
		log:    log,
	}
}

// GenerateRecipeText asks the model for one recipe and returns its raw text.
func (s *LLMService) GenerateRecipeText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(Request{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.8,
		MaxTokens:      1500,
	})
	if err != nil {
		return "", ierr.WithError(err).WithMessage("failed to marshal llm request").Mark(ierr.ErrSystem)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", ierr.WithError(err).WithMessage("failed to create llm request").Mark(ierr.ErrSystem)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", upstreamError(err, "llm request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamError(err, "failed to read llm response")
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Errorw("llm request rejected", "status", resp.StatusCode, "body", truncate(string(body), 500))
		return "", upstreamError(fmt.Errorf("llm returned status %d", resp.StatusCode), "llm request rejected")
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", ierr.WithError(err).
			WithMessage("llm response is not valid JSON").
			WithHint("No pudimos interpretar la receta generada. Intentá de nuevo.").
			Mark(ierr.ErrGenerationParse)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", upstreamError(fmt.Errorf("empty completion"), "llm returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func upstreamError(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("El servicio de recetas no está disponible en este momento. Intentá de nuevo en unos minutos.").
		Mark(ierr.ErrUpstream)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// RecipePromptInput is everything the prompt depends on.
type RecipePromptInput struct {
	Ingredients       []string
	UseStrictMatching bool
	ExcludeRecipes    []string
	DietFilters       types.DietFilters
	IncludeMacros     bool
}

// BuildRecipePrompt returns the system and user prompts for one recipe.
func BuildRecipePrompt(in RecipePromptInput) (string, string) {
	fields := []string{
		`"title": string`,
		`"description": string (una o dos oraciones)`,
		`"preparationTime": string (por ejemplo "30 minutos")`,
		`"difficulty": "Fácil" | "Media" | "Difícil"`,
		`"calories": number (kcal por porción)`,
		`"ingredientsNeeded": string[] (con cantidades)`,
		`"missingIngredients": string[]`,
		`"instructions": string[] (pasos en orden)`,
	}
	if in.IncludeMacros {
		fields = append(fields, `"macros": {"protein": number, "carbs": number, "fat": number} (gramos por porción)`)
	}

	system := "Sos un chef profesional que cocina con lo que hay en la heladera. " +
		"Respondé únicamente con un objeto JSON, sin texto adicional, con estos campos:\n" +
		strings.Join(fields, "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "Ingredientes disponibles: %s.\n", strings.Join(in.Ingredients, ", "))
	if in.UseStrictMatching {
		b.WriteString("Usá solamente esos ingredientes, además de sal, pimienta, aceite y agua. missingIngredients debe ser una lista vacía.\n")
	} else {
		b.WriteString("Podés sugerir hasta 3 ingredientes extra; listalos en missingIngredients.\n")
	}

	var diets []string
	if in.DietFilters.Vegetarian {
		diets = append(diets, "vegetariana")
	}
	if in.DietFilters.Vegan {
		diets = append(diets, "vegana")
	}
	if in.DietFilters.GlutenFree {
		diets = append(diets, "sin TACC")
	}
	if len(diets) > 0 {
		fmt.Fprintf(&b, "La receta tiene que ser %s.\n", strings.Join(diets, " y "))
	}
	if len(in.ExcludeRecipes) > 0 {
		fmt.Fprintf(&b, "No repitas ninguna de estas recetas: %s.\n", strings.Join(in.ExcludeRecipes, "; "))
	}
	b.WriteString("Escribí todo en español rioplatense.")

	return system, b.String()
}
