package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quecocinohoy/backend/internal/model"
)

// SharedRecipe is the public snapshot behind a recipe permalink.
type SharedRecipe struct {
	ID        string                          `gorm:"size:16;primarykey" json:"id"`
	OwnerID   uuid.UUID                       `gorm:"type:varchar(36);index;not null" json:"ownerId"`
	RecipeID  string                          `gorm:"size:64;not null" json:"recipeId"`
	Recipe    datatypes.JSONType[model.Recipe] `json:"recipe"`
	CreatedAt time.Time                       `json:"createdAt"`
}

func (SharedRecipe) TableName() string {
	return "shared_recipes"
}
