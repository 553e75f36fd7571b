package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gpxvault/model"
)

// RouteFilter narrows route listings.
type RouteFilter struct {
	Tag    string // exact tag name (normalized)
	Search string // substring match on route name
}

// RouteRepository defines the data operations for routes.
type RouteRepository interface {
	Create(ctx context.Context, route *model.Route) error
	GetByID(ctx context.Context, id uint) (*model.Route, error)
	GetByShareToken(ctx context.Context, token string) (*model.Route, error)
	List(ctx context.Context, filter RouteFilter) ([]*model.Route, error)
	UpdateArtifacts(ctx context.Context, routeID uint, thumbnailKey, mapKey, status string) error
	UpdateLocation(ctx context.Context, routeID uint, location string, resolved bool) error
	UpdateStatus(ctx context.Context, routeID uint, status string) error
	Delete(ctx context.Context, id uint) error
	AddTags(ctx context.Context, routeID uint, names []string) error
	RemoveTag(ctx context.Context, routeID, tagID uint) error
}

type gormRouteRepository struct {
	db *gorm.DB
}

// NewRouteRepository creates a GORM-backed route repository.
func NewRouteRepository(db *gorm.DB) RouteRepository {
	return &gormRouteRepository{db: db}
}

func (r *gormRouteRepository) Create(ctx context.Context, route *model.Route) error {
	if err := r.db.WithContext(ctx).Create(route).Error; err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	return nil
}

// GetByID returns the route with tags preloaded, or nil when not found.
func (r *gormRouteRepository) GetByID(ctx context.Context, id uint) (*model.Route, error) {
	var route model.Route
	err := r.db.WithContext(ctx).Preload("Tags").First(&route, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load route %d: %w", id, err)
	}
	return &route, nil
}

// GetByShareToken returns the route for a share token, or nil when the
// token is unknown. Unknown and never-issued tokens are indistinguishable.
func (r *gormRouteRepository) GetByShareToken(ctx context.Context, token string) (*model.Route, error) {
	if token == "" {
		return nil, nil
	}
	var route model.Route
	err := r.db.WithContext(ctx).Preload("Tags").Where("share_token = ?", token).First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load route by share token: %w", err)
	}
	return &route, nil
}

func (r *gormRouteRepository) List(ctx context.Context, filter RouteFilter) ([]*model.Route, error) {
	q := r.db.WithContext(ctx).Model(&model.Route{}).Preload("Tags").Order("created_at DESC")

	if filter.Tag != "" {
		q = q.Joins("JOIN route_tags ON route_tags.route_id = routes.id").
			Joins("JOIN tags ON tags.id = route_tags.tag_id").
			Where("tags.name = ?", model.NormalizeTagName(filter.Tag))
	}
	if filter.Search != "" {
		q = q.Where("routes.name LIKE ?", "%"+filter.Search+"%")
	}

	var routes []*model.Route
	if err := q.Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

func (r *gormRouteRepository) UpdateArtifacts(ctx context.Context, routeID uint, thumbnailKey, mapKey, status string) error {
	err := r.db.WithContext(ctx).Model(&model.Route{}).Where("id = ?", routeID).
		Updates(map[string]interface{}{
			"thumbnail_key": thumbnailKey,
			"map_key":       mapKey,
			"status":        status,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update artifacts for route %d: %w", routeID, err)
	}
	return nil
}

func (r *gormRouteRepository) UpdateLocation(ctx context.Context, routeID uint, location string, resolved bool) error {
	err := r.db.WithContext(ctx).Model(&model.Route{}).Where("id = ?", routeID).
		Updates(map[string]interface{}{
			"start_location":    location,
			"location_resolved": resolved,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update location for route %d: %w", routeID, err)
	}
	return nil
}

func (r *gormRouteRepository) UpdateStatus(ctx context.Context, routeID uint, status string) error {
	err := r.db.WithContext(ctx).Model(&model.Route{}).Where("id = ?", routeID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update status for route %d: %w", routeID, err)
	}
	return nil
}

func (r *gormRouteRepository) Delete(ctx context.Context, id uint) error {
	route := model.Route{ID: id}
	if err := r.db.WithContext(ctx).Model(&route).Association("Tags").Clear(); err != nil {
		return fmt.Errorf("failed to clear tags for route %d: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Delete(&route).Error; err != nil {
		return fmt.Errorf("failed to delete route %d: %w", id, err)
	}
	return nil
}

// AddTags attaches tags by name, creating missing ones. Names are
// normalized; blanks are skipped.
func (r *gormRouteRepository) AddTags(ctx context.Context, routeID uint, names []string) error {
	route := model.Route{ID: routeID}
	for _, raw := range names {
		name := model.NormalizeTagName(raw)
		if name == "" {
			continue
		}
		var tag model.Tag
		err := r.db.WithContext(ctx).Where("name = ?", name).
			FirstOrCreate(&tag, model.Tag{Name: name}).Error
		if err != nil {
			return fmt.Errorf("failed to get or create tag %q: %w", name, err)
		}
		if err := r.db.WithContext(ctx).Model(&route).Association("Tags").Append(&tag); err != nil {
			return fmt.Errorf("failed to attach tag %q to route %d: %w", name, routeID, err)
		}
	}
	return nil
}

func (r *gormRouteRepository) RemoveTag(ctx context.Context, routeID, tagID uint) error {
	route := model.Route{ID: routeID}
	tag := model.Tag{ID: tagID}
	if err := r.db.WithContext(ctx).Model(&route).Association("Tags").Delete(&tag); err != nil {
		return fmt.Errorf("failed to remove tag %d from route %d: %w", tagID, routeID, err)
	}
	return nil
}
