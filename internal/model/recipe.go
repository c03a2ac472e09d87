package model

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Macros is the per-serving macronutrient breakdown in grams.
type Macros struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// Recipe is a normalized recipe. Every slice is non-nil and every number is >= 0
// once it has gone through the normalizer.
type Recipe struct {
	ID                 string   `json:"id" validate:"required,max=64"`
	Title              string   `json:"title" validate:"required,max=300"`
	Description        string   `json:"description"`
	PreparationTime    string   `json:"preparationTime"`
	Difficulty         string   `json:"difficulty"`
	Calories           int      `json:"calories" validate:"gte=0"`
	IngredientsNeeded  []string `json:"ingredientsNeeded"`
	MissingIngredients []string `json:"missingIngredients"`
	Instructions       []string `json:"instructions"`
	ImageURL           string   `json:"imageUrl,omitempty"`
	Macros             *Macros  `json:"macros,omitempty"`
}

// ForStorage returns the copy of r that may be persisted for a user. Images are
// kept only for premium users.
func (r Recipe) ForStorage(isPremium bool) Recipe {
	if !isPremium {
		r.ImageURL = ""
	}
	if r.IngredientsNeeded == nil {
		r.IngredientsNeeded = []string{}
	}
	if r.MissingIngredients == nil {
		r.MissingIngredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	return r
}
