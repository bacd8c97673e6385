package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brandy/internal/model"
)

// GetBrandExtent returns the brand's bounding box and timestamps.
func (s *Store) GetBrandExtent(ctx context.Context, brandID int64) (*model.Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT brand_id, last_checked, last_modified, min_lng, min_lat, max_lng, max_lat
		 FROM brand WHERE brand_id = ?`, brandID)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "store: brand %d", brandID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get brand %d", brandID)
	}
	return b, nil
}

// ListBrands returns every brand ordered by ascending id.
func (s *Store) ListBrands(ctx context.Context) ([]model.Brand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT brand_id, last_checked, last_modified, min_lng, min_lat, max_lng, max_lat
		 FROM brand ORDER BY brand_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list brands")
	}
	defer rows.Close()

	var brands []model.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan brand")
		}
		brands = append(brands, *b)
	}
	return brands, eris.Wrap(rows.Err(), "store: iterate brands")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBrand(row scannable) (*model.Brand, error) {
	var b model.Brand
	var minLng, minLat, maxLng, maxLat sql.NullFloat64
	if err := row.Scan(&b.ID, &b.LastChecked, &b.LastModified,
		&minLng, &minLat, &maxLng, &maxLat); err != nil {
		return nil, err
	}
	if minLng.Valid {
		b.BBox = &model.BBox{
			MinLng: minLng.Float64,
			MinLat: minLat.Float64,
			MaxLng: maxLng.Float64,
			MaxLat: maxLat.Float64,
		}
	}
	return &b, nil
}

// FeatureCursor iterates a brand's features one row at a time. Properties are
// decompressed lazily per row, so arbitrarily large datasets stream without
// being buffered. Close releases the underlying rows.
type FeatureCursor struct {
	rows *sql.Rows
	cur  model.Feature
	err  error
}

// Next advances to the next feature. It returns false at the end of the set
// or on error; check Err afterwards.
func (c *FeatureCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var blob []byte
	if err := c.rows.Scan(&c.cur.BrandID, &c.cur.ID, &c.cur.Lng, &c.cur.Lat,
		&c.cur.HashHi, &c.cur.HashLo, &c.cur.LastModified, &blob); err != nil {
		c.err = eris.Wrap(err, "store: scan feature")
		return false
	}
	propsJSON, err := decompress(blob)
	if err != nil {
		c.err = err
		return false
	}
	c.cur.Properties = model.Properties{}
	if err := json.Unmarshal(propsJSON, &c.cur.Properties); err != nil {
		c.err = eris.Wrapf(err, "store: feature %s properties", c.cur.ID)
		return false
	}
	return true
}

// Feature returns the current row. Valid until the next call to Next.
func (c *FeatureCursor) Feature() *model.Feature { return &c.cur }

// Err returns the first error hit while iterating.
func (c *FeatureCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return eris.Wrap(c.rows.Err(), "store: iterate features")
}

// Close releases the cursor. Safe to call after a partial read.
func (c *FeatureCursor) Close() error { return c.rows.Close() }

// StreamFeatures opens a read-only cursor over all of the brand's features.
// A new call re-reads from the start.
func (s *Store) StreamFeatures(ctx context.Context, brandID int64) (*FeatureCursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT brand_id, feature_id, lng, lat, hash_hi, hash_lo, last_modified, props
		 FROM brand_feature WHERE brand_id = ? ORDER BY internal_id`, brandID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: stream brand %d", brandID)
	}
	return &FeatureCursor{rows: rows}, nil
}

// PointCursor iterates bare feature coordinates, feeding the tile renderer
// without materializing property bags.
type PointCursor struct {
	rows     *sql.Rows
	lng, lat float64
	err      error
}

// Next advances to the next point.
func (c *PointCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	if err := c.rows.Scan(&c.lng, &c.lat); err != nil {
		c.err = eris.Wrap(err, "store: scan point")
		return false
	}
	return true
}

// Point returns the current coordinates.
func (c *PointCursor) Point() (lng, lat float64) { return c.lng, c.lat }

// Err returns the first error hit while iterating.
func (c *PointCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return eris.Wrap(c.rows.Err(), "store: iterate points")
}

// Close releases the cursor.
func (c *PointCursor) Close() error { return c.rows.Close() }

// StreamPoints opens a cursor over the brand's feature coordinates.
func (s *Store) StreamPoints(ctx context.Context, brandID int64) (*PointCursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lng, lat FROM brand_feature WHERE brand_id = ? ORDER BY internal_id`, brandID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: stream points for brand %d", brandID)
	}
	return &PointCursor{rows: rows}, nil
}

// FindFeaturesInBox returns up to limit features whose indexed box lies
// entirely inside the query box, in ascending handle order. The row query
// rechecks the exact coordinates because the R*Tree stores float32-rounded
// boxes; a feature outside the box is never returned.
func (s *Store) FindFeaturesInBox(ctx context.Context, brandID int64, box model.BBox, limit int) ([]model.Feature, error) {
	handles, err := s.idx.Query(ctx, s.db, brandID, box)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(handles)), ",")
	args := make([]any, 0, len(handles)+6)
	args = append(args, brandID)
	for _, h := range handles {
		args = append(args, h)
	}
	args = append(args, box.MinLng, box.MaxLng, box.MinLat, box.MaxLat, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT brand_id, feature_id, lng, lat, hash_hi, hash_lo, last_modified, props
		 FROM brand_feature
		 WHERE brand_id = ? AND internal_id IN (`+placeholders+`)
		   AND lng BETWEEN ? AND ? AND lat BETWEEN ? AND ?
		 ORDER BY internal_id LIMIT ?`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "store: find features for brand %d", brandID)
	}
	cursor := &FeatureCursor{rows: rows}
	defer cursor.Close()

	var features []model.Feature
	for cursor.Next() {
		features = append(features, *cursor.Feature())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return features, nil
}
