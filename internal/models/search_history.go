package models

import (
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quecocinohoy/backend/internal/model"
)

// EmbeddingDimensions is the size of the ingredient embedding vector.
const EmbeddingDimensions = 32

type SearchHistory struct {
	ID          uuid.UUID              `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID      uuid.UUID              `gorm:"type:varchar(36);index;not null" json:"userId"`
	Ingredients model.JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	RecipeID    string                 `gorm:"size:64" json:"recipeId"`
	RecipeTitle string                 `gorm:"size:300" json:"recipeTitle"`
	Embedding   pgvector.Vector        `gorm:"type:vector(32)" json:"-"`
	CreatedAt   time.Time              `gorm:"index" json:"createdAt"`
}

func (SearchHistory) TableName() string {
	return "search_history"
}
