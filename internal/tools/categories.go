package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// list_categories returns known category names, falling back to a
// built-in set when the table is empty.
func listCategoriesDefinition() Definition {
	return Definition{
		Schema: toolSchema("list_categories",
			"List all known expense categories. Use this to validate or suggest a category when parsing an expense. Returns a list of category names.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			}),
		Handler: listCategories,
	}
}

func listCategories(ctx context.Context, inv Invocation, _ json.RawMessage) (map[string]any, error) {
	names, err := inv.Store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	if len(names) == 0 {
		names = DefaultCategories()
	}
	return map[string]any{"categories": names}, nil
}

// create_category adds a user-defined category, normalised to lowercase.
func createCategoryDefinition() Definition {
	return Definition{
		Schema: toolSchema("create_category",
			"Add a new user-defined expense category. The category name is normalised to lowercase. Returns the created category or indicates that it already exists.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "The category name to create (e.g. 'dining', 'petcare').",
					},
				},
				"required": []string{"name"},
			}),
		Handler: createCategory,
	}
}

func createCategory(ctx context.Context, inv Invocation, args json.RawMessage) (map[string]any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return map[string]any{"error": "invalid create_category arguments: " + err.Error()}, nil
	}

	normalised := strings.ToLower(strings.TrimSpace(a.Name))
	if normalised == "" {
		return map[string]any{"error": "Category name cannot be empty."}, nil
	}

	stored, created, err := inv.Store.CreateCategory(ctx, normalised)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	message := fmt.Sprintf("Category '%s' already exists.", stored)
	if created {
		message = fmt.Sprintf("Category '%s' created.", stored)
	}
	return map[string]any{
		"success": true,
		"name":    stored,
		"message": message,
	}, nil
}

// DefaultCategories is the starter set used before any user-defined
// categories exist.
func DefaultCategories() []string {
	return []string{
		"clothing",
		"coffee",
		"dining",
		"education",
		"entertainment",
		"gas",
		"gifts",
		"groceries",
		"health",
		"home",
		"insurance",
		"personal",
		"subscriptions",
		"transport",
		"travel",
		"utilities",
	}
}
