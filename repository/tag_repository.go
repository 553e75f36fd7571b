package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gpxvault/model"
)

// TagRepository defines the data operations for tags.
type TagRepository interface {
	List(ctx context.Context) ([]*model.Tag, error)
	GetOrCreate(ctx context.Context, name string) (*model.Tag, error)
}

type gormTagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a GORM-backed tag repository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &gormTagRepository{db: db}
}

func (r *gormTagRepository) List(ctx context.Context) ([]*model.Tag, error) {
	var tags []*model.Tag
	if err := r.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (r *gormTagRepository) GetOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	normalized := model.NormalizeTagName(name)
	if normalized == "" {
		return nil, fmt.Errorf("empty tag name")
	}
	var tag model.Tag
	err := r.db.WithContext(ctx).Where("name = ?", normalized).
		FirstOrCreate(&tag, model.Tag{Name: normalized}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create tag %q: %w", normalized, err)
	}
	return &tag, nil
}
