package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brandy/internal/model"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestBoundingBox_Point(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"Point","coordinates":[8,47]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 8, MinLat: 47, MaxLng: 8, MaxLat: 47}, *box)
}

func TestBoundingBox_LineString(t *testing.T) {
	box := BoundingBox(decode(t,
		`{"type":"LineString","coordinates":[[10,3],[-2,2],[11,1]]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: -2, MinLat: 1, MaxLng: 11, MaxLat: 3}, *box)
}

func TestBoundingBox_MultiPoint(t *testing.T) {
	box := BoundingBox(decode(t,
		`{"type":"MultiPoint","coordinates":[[10,3],[-2,2],[11,1]]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: -2, MinLat: 1, MaxLng: 11, MaxLat: 3}, *box)
}

func TestBoundingBox_Polygon(t *testing.T) {
	// Interior rings count toward the box just like the outer ring.
	box := BoundingBox(decode(t, `{"type":"Polygon","coordinates":[
		[[100.0,0.0],[101.0,0.0],[101.0,1.0],[100.0,-99.9],[100.0,0.0]],
		[[100.8,0.8],[100.8,0.2],[123.2,0.2],[100.2,0.8],[100.8,0.8]]]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 100, MinLat: -99.9, MaxLng: 123.2, MaxLat: 1}, *box)
}

func TestBoundingBox_MultiLineString(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"MultiLineString","coordinates":[
		[[100.0,0.0],[101.0,1.0]],
		[[102.0,2.0],[103.0,3.0]]]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 100, MinLat: 0, MaxLng: 103, MaxLat: 3}, *box)
}

func TestBoundingBox_MultiPolygon(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"MultiPolygon","coordinates":[
		[[[102.0,2.0],[103.0,2.0],[103.0,3.0],[102.0,3.0],[102.0,2.0]]],
		[[[100.0,0.0],[101.0,0.0],[101.0,1.0],[100.0,1.0],[100.0,0.0]],
		 [[100.2,0.2],[100.8,0.2],[100.8,0.8],[100.2,0.8],[100.2,0.2]]]]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 100, MinLat: 0, MaxLng: 103, MaxLat: 3}, *box)
}

func TestBoundingBox_GeometryCollection(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"GeometryCollection","geometries":[
		{"type":"Point","coordinates":[100.0,0.0]},
		{"type":"LineString","coordinates":[[101.0,0.0],[102.0,1.0]]}]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 100, MinLat: 0, MaxLng: 102, MaxLat: 1}, *box)

	assert.Nil(t, BoundingBox(decode(t, `{"type":"GeometryCollection","geometries":[]}`)))
}

func TestBoundingBox_Feature(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"Feature","properties":{"name":"x"},
		"geometry":{"type":"Point","coordinates":[8.5,47.6]}}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 8.5, MinLat: 47.6, MaxLng: 8.5, MaxLat: 47.6}, *box)
}

func TestBoundingBox_FeatureCollection(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.5,47.6]}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[8.6,47.3]}}]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: 8.5, MinLat: 47.3, MaxLng: 8.6, MaxLat: 47.6}, *box)

	assert.Nil(t, BoundingBox(decode(t, `{"type":"FeatureCollection","features":[]}`)))
	assert.Nil(t, BoundingBox(decode(t, `{"type":"FeatureCollection"}`)))
}

func TestBoundingBox_NestedCollections(t *testing.T) {
	box := BoundingBox(decode(t, `{"type":"GeometryCollection","geometries":[
		{"type":"GeometryCollection","geometries":[
			{"type":"Point","coordinates":[-10.0,-5.0]}]},
		{"type":"Point","coordinates":[10.0,5.0]}]}`))
	require.NotNil(t, box)
	assert.Equal(t, model.BBox{MinLng: -10, MinLat: -5, MaxLng: 10, MaxLat: 5}, *box)
}

func TestBoundingBox_Invalid(t *testing.T) {
	assert.Nil(t, BoundingBox(nil))
	assert.Nil(t, BoundingBox("not an object"))
	assert.Nil(t, BoundingBox(decode(t, `[1,2,3]`)))
	assert.Nil(t, BoundingBox(decode(t, `{"type":"Blob","coordinates":[1,2]}`)))
	assert.Nil(t, BoundingBox(decode(t, `{"coordinates":[1,2]}`)))
}

func TestTileToLngLat_Anchors(t *testing.T) {
	lng, lat := TileToLngLat(0, 0, 0)
	assert.InDelta(t, -180.0, lng, 1e-9)
	assert.InDelta(t, 85.0511287798, lat, 1e-6)

	// Tile (1,1) at zoom 1 has its NW corner at the origin.
	lng, lat = TileToLngLat(1, 1, 1)
	assert.InDelta(t, 0.0, lng, 1e-9)
	assert.InDelta(t, 0.0, lat, 1e-9)
}

func TestTileRoundTrip(t *testing.T) {
	// A point in the middle of a tile must map back to that tile. (Exact
	// corners sit on the floor() boundary and are not stable under float
	// rounding on the latitude axis.)
	for _, tc := range []struct{ zoom, x, y int }{
		{0, 0, 0},
		{1, 0, 1},
		{9, 268, 179},
		{14, 8593, 5747},
		{17, 68608, 45824},
	} {
		lng, lat := TileToLngLat(tc.zoom+1, 2*tc.x+1, 2*tc.y+1)
		x, y := LngLatToTile(lng, lat, tc.zoom)
		assert.Equal(t, tc.x, x, "zoom=%d", tc.zoom)
		assert.Equal(t, tc.y, y, "zoom=%d", tc.zoom)
	}
}

func TestLngLatToTile_Zurich(t *testing.T) {
	x, y := LngLatToTile(8.54, 47.38, 9)
	assert.Equal(t, 268, x)
	assert.Equal(t, 179, y)
}

func TestClickBBox(t *testing.T) {
	// A click in the middle of tile (9, 268, 179) lands near Zurich.
	box := ClickBBox(9, 268, 179, 128, 128, 6)
	lng, lat := box.Center()
	assert.InDelta(t, 8.7890625, lng, 1e-6)
	assert.InDelta(t, 47.27923, lat, 0.001)

	// The box must contain its own click point and stay small.
	assert.True(t, box.Contains(lng, lat))
	assert.Less(t, box.MaxLng-box.MinLng, 0.1)
	assert.Less(t, box.MaxLat-box.MinLat, 0.1)

	// Zero fuzz degenerates to a point.
	degenerate := ClickBBox(9, 268, 179, 0, 0, 0)
	assert.Equal(t, degenerate.MinLng, degenerate.MaxLng)
	assert.Equal(t, degenerate.MinLat, degenerate.MaxLat)
}
