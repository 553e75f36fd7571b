package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// Route processing status values.
const (
	StatusProcessing = "processing" // record created, artifacts pending
	StatusReady      = "ready"      // all artifacts generated
	StatusDegraded   = "degraded"   // stored with fallback artifacts
	StatusFailed     = "failed"     // background processing gave up
)

// Route is one stored GPS route: the parsed summary, references to the
// artifacts in object storage, and the public share token.
type Route struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:200;not null" json:"name"`

	// Object storage keys; empty until the artifact exists.
	GPXKey       string `gorm:"size:512;not null" json:"-"`
	ThumbnailKey string `gorm:"size:512" json:"-"`
	MapKey       string `gorm:"size:512" json:"-"`

	DistanceKm     float64 `json:"distanceKm"`
	ElevationGainM float64 `json:"elevationGainM"`
	PointCount     int     `json:"pointCount"`

	StartLat float64 `json:"startLat"`
	StartLon float64 `json:"startLon"`
	EndLat   float64 `json:"endLat"`
	EndLon   float64 `json:"endLon"`

	// StartLocation is a readable place name when LocationResolved is
	// true, otherwise a "lat, lon" fallback string.
	StartLocation    string `gorm:"size:300" json:"startLocation"`
	LocationResolved bool   `json:"locationResolved"`

	Status     string `gorm:"size:20;not null;default:processing" json:"status"`
	ShareToken string `gorm:"size:64;uniqueIndex;not null" json:"shareToken"`

	Tags []Tag `gorm:"many2many:route_tags" json:"tags"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DistanceMiles converts the stored distance for display.
func (r *Route) DistanceMiles() float64 {
	return r.DistanceKm * 0.621371
}

// BeforeCreate assigns a share token when none was set.
func (r *Route) BeforeCreate(_ *gorm.DB) error {
	if r.ShareToken == "" {
		token, err := GenerateShareToken()
		if err != nil {
			return err
		}
		r.ShareToken = token
	}
	return nil
}

// GenerateShareToken returns an unguessable 32-character hex token.
func GenerateShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
