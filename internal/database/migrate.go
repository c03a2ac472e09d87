package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quecocinohoy/backend/internal/models"
)

// AllModels lists every persisted model in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Subscription{},
		&models.SubscriptionEvent{},
		&models.Entitlement{},
		&models.Favorite{},
		&models.SharedRecipe{},
		&models.SearchHistory{},
	}
}

// RunMigrations brings the schema up to date. Postgres needs the vector
// extension before the search_history table can be created.
func RunMigrations(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_search_history_embedding
			ON search_history USING hnsw (embedding vector_l2_ops)`).Error; err != nil {
			return fmt.Errorf("failed to create embedding index: %w", err)
		}
	}

	return nil
}
