package server

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandy/internal/geometry"
	"github.com/sells-group/brandy/internal/render"
	"github.com/sells-group/brandy/internal/store"
)

// tileCoords parses and range-checks the z/x/y path segments.
func tileCoords(r *http.Request) (z, x, y int, ok bool) {
	z, okZ := intParam(r, "z")
	x, okX := intParam(r, "x")
	y, okY := intParam(r, "y")
	if !okZ || !okX || !okY || z < 0 || z > 30 {
		return 0, 0, 0, false
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return 0, 0, 0, false
	}
	return z, x, y, true
}

// handleTile renders one raster tile of the brand's markers via the external
// renderer.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	brandID, ok := brandIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	z, x, y, ok := tileCoords(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such tile")
		return
	}
	if _, err := s.store.GetBrandExtent(r.Context(), brandID); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such collection")
			return
		}
		zap.L().Error("get brand", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	points, err := s.store.StreamPoints(r.Context(), brandID)
	if err != nil {
		zap.L().Error("stream points", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer points.Close()

	png, err := s.renderer.RenderTile(r.Context(),
		render.TileSpec{Zoom: z, X: x, Y: y}, s.styles.StyleForZoom(z), points)
	if eris.Is(err, render.ErrRenderTimeout) {
		zap.L().Warn("tile render timeout",
			zap.Int64("brand_id", brandID), zap.Int("z", z), zap.Int("x", x), zap.Int("y", y))
		writeError(w, http.StatusGatewayTimeout, "tile render timed out")
		return
	}
	if err != nil {
		zap.L().Error("tile render", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "tile render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleTileClick resolves a pixel click on a tile to the nearest stored
// feature, returned as a FeatureCollection with zero or one members.
func (s *Server) handleTileClick(w http.ResponseWriter, r *http.Request) {
	brandID, ok := brandIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	z, x, y, ok := tileCoords(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such tile")
		return
	}
	i, okI := intParam(r, "i")
	j, okJ := intParam(r, "j")
	if !okI || !okJ || i < 0 || i > 255 || j < 0 || j > 255 {
		writeError(w, http.StatusNotFound, "pixel out of range")
		return
	}
	if _, err := s.store.GetBrandExtent(r.Context(), brandID); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such collection")
			return
		}
		zap.L().Error("get brand", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	box := geometry.ClickBBox(z, x, y, i, j, s.fuzzPixels)
	features, err := s.store.FindFeaturesInBox(r.Context(), brandID, box, 1)
	if err != nil {
		zap.L().Error("find features", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	encoded := make([]json.RawMessage, 0, len(features))
	for idx := range features {
		buf, err := encodeFeature(&features[idx])
		if err != nil {
			zap.L().Error("encode feature", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		encoded = append(encoded, buf)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     "FeatureCollection",
		"features": encoded,
	})
}
