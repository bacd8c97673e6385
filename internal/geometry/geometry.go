// Package geometry holds the pure geospatial math used by the feature store:
// bounding boxes over arbitrary GeoJSON values and Web-Mercator slippy-map
// tile transforms.
package geometry

import (
	"math"

	"github.com/sells-group/brandy/internal/model"
)

// BoundingBox computes the tight bounding box of a decoded GeoJSON value
// (a Geometry, Feature or FeatureCollection unmarshaled into map[string]any).
// It returns nil for non-objects, unrecognized types, and for empty
// FeatureCollections or GeometryCollections, which RFC 7946 permits.
func BoundingBox(o any) *model.BBox {
	obj, ok := o.(map[string]any)
	if !ok {
		return nil
	}
	switch obj["type"] {
	case "Feature":
		return BoundingBox(obj["geometry"])
	case "FeatureCollection":
		return unionBoxes(obj["features"])
	case "GeometryCollection":
		return unionBoxes(obj["geometries"])
	case "Point":
		c, ok := position(obj["coordinates"])
		if !ok {
			return nil
		}
		return &model.BBox{MinLng: c[0], MinLat: c[1], MaxLng: c[0], MaxLat: c[1]}
	case "LineString", "MultiPoint":
		return coordsBox(obj["coordinates"], 1)
	case "Polygon", "MultiLineString":
		return coordsBox(obj["coordinates"], 2)
	case "MultiPolygon":
		return coordsBox(obj["coordinates"], 3)
	}
	return nil
}

// unionBoxes folds BoundingBox over a slice of features or geometries.
// A single member without a computable box poisons the whole union.
func unionBoxes(v any) *model.BBox {
	members, ok := v.([]any)
	if !ok || len(members) == 0 {
		return nil
	}
	box := BoundingBox(members[0])
	if box == nil {
		return nil
	}
	for _, m := range members[1:] {
		b := BoundingBox(m)
		if b == nil {
			return nil
		}
		box.MinLng = math.Min(box.MinLng, b.MinLng)
		box.MinLat = math.Min(box.MinLat, b.MinLat)
		box.MaxLng = math.Max(box.MaxLng, b.MaxLng)
		box.MaxLat = math.Max(box.MaxLat, b.MaxLat)
	}
	return box
}

// coordsBox walks a coordinate array nested depth levels above positions.
func coordsBox(v any, depth int) *model.BBox {
	if depth == 0 {
		c, ok := position(v)
		if !ok {
			return nil
		}
		return &model.BBox{MinLng: c[0], MinLat: c[1], MaxLng: c[0], MaxLat: c[1]}
	}
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	box := coordsBox(arr[0], depth-1)
	if box == nil {
		return nil
	}
	for _, m := range arr[1:] {
		b := coordsBox(m, depth-1)
		if b == nil {
			return nil
		}
		box.MinLng = math.Min(box.MinLng, b.MinLng)
		box.MinLat = math.Min(box.MinLat, b.MinLat)
		box.MaxLng = math.Max(box.MaxLng, b.MaxLng)
		box.MaxLat = math.Max(box.MaxLat, b.MaxLat)
	}
	return box
}

// position extracts [lng, lat] from a decoded coordinate pair.
func position(v any) ([2]float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) < 2 {
		return [2]float64{}, false
	}
	lng, ok1 := arr[0].(float64)
	lat, ok2 := arr[1].(float64)
	if !ok1 || !ok2 {
		return [2]float64{}, false
	}
	return [2]float64{lng, lat}, true
}

// TileToLngLat returns the geographic coordinates of the north-west corner of
// the slippy-map tile (zoom, x, y).
func TileToLngLat(zoom, x, y int) (lng, lat float64) {
	n := math.Exp2(float64(zoom))
	lng = float64(x)/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	return lng, lat
}

// LngLatToTile returns the tile containing the given point at the given zoom.
func LngLatToTile(lng, lat float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x = int(math.Floor((lng + 180) / 360 * n))
	y = int(math.Floor((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n))
	return x, y
}

// ClickBBox resolves a pixel click on a 256x256 tile into a small geographic
// box. The click is located at sub-tile zoom+8, where one sub-tile unit equals
// one pixel, and widened by fuzz pixels on each side.
func ClickBBox(zoom, x, y, i, j, fuzz int) model.BBox {
	subZoom := zoom + 8
	subX := x*256 + i
	subY := y*256 + j
	west, north := TileToLngLat(subZoom, subX-fuzz, subY-fuzz)
	east, south := TileToLngLat(subZoom, subX+fuzz, subY+fuzz)
	return model.BBox{MinLng: west, MinLat: south, MaxLng: east, MaxLat: north}
}
