package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quecocinohoy/backend/config"
	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
)

type recordingStore struct {
	userID   uuid.UUID
	recipeID string
	data     []byte
}

func (s *recordingStore) PutRecipeImage(_ context.Context, userID uuid.UUID, recipeID string, data []byte) (string, error) {
	s.userID, s.recipeID, s.data = userID, recipeID, data
	return "https://recetas.s3.amazonaws.com/" + userID.String() + "/" + recipeID, nil
}

var pngBytes = []byte{0x89, 'P', 'N', 'G'}

func newTestImages(t *testing.T, store *recordingStore, handler http.HandlerFunc) *ImageService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.ImageConfig{APIKey: "img-key", APIURL: srv.URL, Model: "dall-e-3", Timeout: 5 * time.Second}
	var svc *ImageService
	if store != nil {
		svc = NewImageService(cfg, store, logger.NewNop())
	} else {
		svc = NewImageService(cfg, nil, logger.NewNop())
	}
	svc.client.RetryWaitMin = time.Millisecond
	svc.client.RetryWaitMax = 5 * time.Millisecond
	return svc
}

func imageOK(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImageGenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Contains(t, req.Prompt, "guiso de lentejas")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	}
}

func TestGenerateRecipeImage_Stored(t *testing.T) {
	store := &recordingStore{}
	svc := newTestImages(t, store, imageOK(t))
	userID := uuid.New()

	url, err := svc.GenerateRecipeImage(context.Background(), userID, &model.Recipe{ID: "r1", Title: "Guiso de lentejas"})
	require.NoError(t, err)
	assert.Equal(t, "https://recetas.s3.amazonaws.com/"+userID.String()+"/r1", url)
	assert.Equal(t, userID, store.userID)
	assert.Equal(t, "r1", store.recipeID)
	assert.Equal(t, pngBytes, store.data)
}

func TestGenerateRecipeImage_InlineWithoutStore(t *testing.T) {
	svc := newTestImages(t, nil, imageOK(t))

	url, err := svc.GenerateRecipeImage(context.Background(), uuid.New(), &model.Recipe{ID: "r1", Title: "Guiso de lentejas"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), url)
}

func TestGenerateImageDataURI(t *testing.T) {
	store := &recordingStore{}
	svc := newTestImages(t, store, imageOK(t))

	url, err := svc.GenerateImageDataURI(context.Background(), "Guiso de lentejas")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), url)
	assert.Nil(t, store.data)
}

func TestGenerateImage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"content policy"}}`))
		}},
		{"empty data", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
		}},
		{"bad base64", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"%%%"}]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestImages(t, nil, tt.handler)
			_, err := svc.GenerateImageDataURI(context.Background(), "Guiso")
			require.Error(t, err)
			assert.True(t, ierr.Is(err, ierr.ErrUpstream))
		})
	}
}

func TestBuildImagePrompt(t *testing.T) {
	p := BuildImagePrompt("  Guiso de Lentejas ", "Con chorizo")
	assert.Contains(t, p, "guiso de lentejas, con chorizo")
	assert.LessOrEqual(t, utf8.RuneCountInString(BuildImagePrompt(string(make([]byte, 2000)), "")), 900)

	long := BuildImagePrompt(strings.Repeat("ñoquis con salsa de albóndigas ", 60), "")
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, 900, utf8.RuneCountInString(long))
}
