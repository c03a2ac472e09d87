package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/quecocinohoy/backend/config"
	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/storage"
)

// ImageGenerationRequest represents a request to the images API
type ImageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

// ImageGenerationResponse represents the response from the images API
type ImageGenerationResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// ImageService generates recipe pictures and stores them when a bucket is
// configured.
type ImageService struct {
	apiKey string
	apiURL string
	model  string
	client *retryablehttp.Client
	store  storage.ImageStore
	log    *logger.Logger
}

// NewImageService creates a new ImageService instance. store may be nil, in
// which case images are returned inline as data URIs.
func NewImageService(cfg config.ImageConfig, store storage.ImageStore, log *logger.Logger) *ImageService {
	log = log.Named("images")
	return &ImageService{
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		model:  cfg.Model,
		client: newRetryableClient(cfg.Timeout, 1, log),
		store:  store,
		log:    log,
	}
}

// GenerateRecipeImage renders the recipe and stores it at {userId}/{recipeId}.
func (s *ImageService) GenerateRecipeImage(ctx context.Context, userID uuid.UUID, recipe *model.Recipe) (string, error) {
	data, err := s.generate(ctx, BuildImagePrompt(recipe.Title, recipe.Description))
	if err != nil {
		return "", err
	}
	if s.store == nil {
		return dataURI(data), nil
	}
	return s.store.PutRecipeImage(ctx, userID, recipe.ID, data)
}

// GenerateImageDataURI renders a picture for title and returns it inline.
func (s *ImageService) GenerateImageDataURI(ctx context.Context, title string) (string, error) {
	data, err := s.generate(ctx, BuildImagePrompt(title, ""))
	if err != nil {
		return "", err
	}
	return dataURI(data), nil
}

func (s *ImageService) generate(ctx context.Context, prompt string) ([]byte, error) {
	payload, err := json.Marshal(ImageGenerationRequest{
		Model:          s.model,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		Quality:        "standard",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to marshal image request").Mark(ierr.ErrSystem)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to create image request").Mark(ierr.ErrSystem)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, imageError(err, "image request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, imageError(err, "failed to read image response")
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Errorw("image request rejected", "status", resp.StatusCode, "body", truncate(string(body), 500))
		return nil, imageError(fmt.Errorf("images api returned status %d", resp.StatusCode), "image request rejected")
	}

	var out ImageGenerationResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, imageError(err, "failed to decode image response")
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, imageError(fmt.Errorf("no image data"), "empty image response")
	}

	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, imageError(err, "invalid image payload")
	}
	return data, nil
}

func imageError(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("No pudimos generar la imagen. Intentá de nuevo en unos minutos.").
		Mark(ierr.ErrUpstream)
}

func dataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// BuildImagePrompt describes a food photograph of the dish.
func BuildImagePrompt(title, description string) string {
	dish := strings.ToLower(strings.TrimSpace(title))
	if d := strings.TrimSpace(description); d != "" {
		dish += ", " + strings.ToLower(d)
	}
	prompt := "A professional food photography shot of " + dish +
		", shot with natural lighting, shallow depth of field, home-style plating, appetizing colors, no text"
	return truncate(prompt, 900)
}
