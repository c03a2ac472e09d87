package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quecocinohoy/backend/internal/model"
)

type Favorite struct {
	ID        uuid.UUID                       `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID    uuid.UUID                       `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_recipe" json:"userId"`
	RecipeID  string                          `gorm:"size:64;not null;uniqueIndex:idx_favorites_user_recipe" json:"recipeId"`
	Title     string                          `gorm:"size:300;not null" json:"title"`
	Recipe    datatypes.JSONType[model.Recipe] `json:"recipe"`
	CreatedAt time.Time                       `json:"createdAt"`
}

func (Favorite) TableName() string {
	return "favorites"
}
