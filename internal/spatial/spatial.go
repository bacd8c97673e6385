// Package spatial maintains the per-brand bounding-box index backing tile
// click resolution. The index lives in the same SQLite database as the
// feature rows (an R*Tree virtual table), so index rebuilds share the
// feature store's transactions.
package spatial

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brandy/internal/model"
)

// Schema creates the R*Tree virtual table. brand_id is an auxiliary column:
// it is stored with each entry but not indexed spatially.
const Schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS brand_feature_rtree USING rtree(
	internal_id,
	min_lng, max_lng,
	min_lat, max_lat,
	+brand_id
);
`

// DBTX is the subset of database/sql needed by index operations. Both *sql.DB
// and *sql.Tx satisfy it, so callers decide the transaction scope.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Index is a bounding-box index over feature handles, partitioned by brand.
type Index struct{}

// NewIndex returns the R*Tree-backed index.
func NewIndex() *Index {
	return &Index{}
}

// Clear removes every entry belonging to the brand.
func (Index) Clear(ctx context.Context, q DBTX, brandID int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM brand_feature_rtree WHERE brand_id = ?`, brandID)
	return eris.Wrapf(err, "spatial: clear brand %d", brandID)
}

// Insert adds one entry mapping an internal feature handle to its box.
func (Index) Insert(ctx context.Context, q DBTX, brandID, handle int64, box model.BBox) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO brand_feature_rtree
		     (internal_id, min_lng, max_lng, min_lat, max_lat, brand_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		handle, box.MinLng, box.MaxLng, box.MinLat, box.MaxLat, brandID)
	return eris.Wrapf(err, "spatial: insert handle %d", handle)
}

// Query returns the handles of every entry whose box lies entirely inside the
// query box. This is containment, not intersection: an entry straddling the
// box edge does not match. Handles come back in ascending order so identical
// queries yield identical results.
func (Index) Query(ctx context.Context, q DBTX, brandID int64, box model.BBox) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT internal_id FROM brand_feature_rtree
		 WHERE brand_id = ?
		   AND min_lng >= ? AND max_lng <= ?
		   AND min_lat >= ? AND max_lat <= ?
		 ORDER BY internal_id`,
		brandID, box.MinLng, box.MaxLng, box.MinLat, box.MaxLat)
	if err != nil {
		return nil, eris.Wrapf(err, "spatial: query brand %d", brandID)
	}
	defer rows.Close()

	var handles []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, eris.Wrap(err, "spatial: scan handle")
		}
		handles = append(handles, h)
	}
	return handles, eris.Wrap(rows.Err(), "spatial: iterate handles")
}
