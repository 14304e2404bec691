package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/store"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#3b82f6"

// ErrInvalidCategory is wrapped by category validation failures.
var ErrInvalidCategory = errors.New("invalid category")

// ListCategories returns the user's categories by name.
func (m *Manager) ListCategories(ctx context.Context, userID string) ([]*models.Category, error) {
	return m.store.ListCategories(ctx, userID)
}

// CreateCategory adds a category. Names are unique per user.
func (m *Manager) CreateCategory(ctx context.Context, userID, name, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidCategory)
	}
	if err := m.checkName(ctx, userID, "", name); err != nil {
		return nil, err
	}
	if color == "" {
		color = DefaultCategoryColor
	}
	c := &models.Category{UserID: userID, Name: name, Color: color}
	if err := m.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCategory renames or recolors a category. Empty fields keep their
// current value.
func (m *Manager) UpdateCategory(ctx context.Context, userID, id, name, color string) (*models.Category, error) {
	c, err := m.ownedCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" && name != c.Name {
		if err := m.checkName(ctx, userID, c.ID, name); err != nil {
			return nil, err
		}
		c.Name = name
	}
	if color != "" {
		c.Color = color
	}
	if err := m.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category. Its sessions become uncategorized.
func (m *Manager) DeleteCategory(ctx context.Context, userID, id string) error {
	if _, err := m.ownedCategory(ctx, userID, id); err != nil {
		return err
	}
	return m.store.DeleteCategory(ctx, id)
}

// ownedCategory hides other users' categories behind ErrNotFound.
func (m *Manager) ownedCategory(ctx context.Context, userID, id string) (*models.Category, error) {
	c, err := m.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("category %w: %s", store.ErrNotFound, id)
	}
	return c, nil
}

func (m *Manager) checkName(ctx context.Context, userID, selfID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	existing, err := m.store.GetCategoryByName(ctx, userID, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: %q already exists", ErrInvalidCategory, name)
	}
	return nil
}
