// Package storage persists generated recipe images.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/quecocinohoy/backend/config"
	ierr "github.com/quecocinohoy/backend/internal/errors"
)

// ObjectPutter is the subset of the S3 client the image store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ImageStore writes one image per (user, recipe) pair. Regenerating an image
// overwrites the previous object.
type ImageStore interface {
	PutRecipeImage(ctx context.Context, userID uuid.UUID, recipeID string, data []byte) (string, error)
}

type s3ImageStore struct {
	client   ObjectPutter
	bucket   string
	endpoint string
}

// NewS3ImageStore returns nil when no bucket is configured.
func NewS3ImageStore(cfg *config.S3Config) ImageStore {
	if cfg == nil || cfg.Client == nil || cfg.BucketName == "" {
		return nil
	}
	return NewImageStore(cfg.Client, cfg.BucketName, cfg.Endpoint)
}

// NewImageStore builds a store on any ObjectPutter.
func NewImageStore(client ObjectPutter, bucket, endpoint string) ImageStore {
	return &s3ImageStore{client: client, bucket: bucket, endpoint: strings.TrimRight(endpoint, "/")}
}

// ObjectKey is the storage key of a recipe image.
func ObjectKey(userID uuid.UUID, recipeID string) string {
	return fmt.Sprintf("%s/%s", userID, recipeID)
}

func (s *s3ImageStore) PutRecipeImage(ctx context.Context, userID uuid.UUID, recipeID string, data []byte) (string, error) {
	if recipeID == "" || len(data) == 0 {
		return "", ierr.NewError("recipe id and image data are required").
			WithHint("No pudimos guardar la imagen.").
			Mark(ierr.ErrValidation)
	}

	key := ObjectKey(userID, recipeID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to upload recipe image").
			WithHint("No pudimos guardar la imagen.").
			Mark(ierr.ErrUpstream)
	}
	return s.publicURL(key), nil
}

func (s *s3ImageStore) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
