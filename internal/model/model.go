package model

import "time"

// BBox is an axis-aligned geographic bounding box in WGS-84 degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// Center returns the midpoint of the box.
func (b BBox) Center() (lng, lat float64) {
	return (b.MinLng + b.MaxLng) / 2, (b.MinLat + b.MaxLat) / 2
}

// Slice returns the box as [minLng, minLat, maxLng, maxLat], the order used
// in OGC API responses.
func (b BBox) Slice() []float64 {
	return []float64{b.MinLng, b.MinLat, b.MaxLng, b.MaxLat}
}

// Properties is an opaque string->string attribute bag attached to a feature.
// encoding/json marshals map keys in sorted order, which makes the serialized
// form deterministic; fingerprinting and storage rely on that.
type Properties map[string]string

// Brand is one scraped data source. The whole row is replaced on every
// successful ingest.
type Brand struct {
	ID           int64      `json:"id"`
	LastChecked  time.Time  `json:"last_checked"`
	LastModified time.Time  `json:"last_modified"`
	BBox         *BBox      `json:"bbox,omitempty"` // nil when the brand has no features
}

// Feature is one point of interest belonging to a brand.
type Feature struct {
	BrandID      int64      `json:"brand_id"`
	ID           string     `json:"id"`
	Lng          float64    `json:"lng"`
	Lat          float64    `json:"lat"`
	Properties   Properties `json:"properties"`
	HashHi       int64      `json:"-"`
	HashLo       int64      `json:"-"`
	LastModified time.Time  `json:"last_modified"`
}

// Scrape is one recorded ingest attempt.
type Scrape struct {
	ID          string    `json:"id"`
	Scraper     string    `json:"scraper"`
	ScrapedAt   time.Time `json:"scraped_at"`
	NumFeatures int       `json:"num_features"`
	ErrorLog    string    `json:"error_log,omitempty"`
}

// User is an account allowed to submit scraped datasets.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
}
