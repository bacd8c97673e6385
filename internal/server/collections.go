package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/brandy/internal/model"
	"github.com/sells-group/brandy/internal/store"
)

type linkDoc struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type"`
}

type extentDoc struct {
	Spatial struct {
		BBox [][]float64 `json:"bbox"`
	} `json:"spatial"`
}

type collectionDoc struct {
	ID     string     `json:"id"`
	Extent *extentDoc `json:"extent,omitempty"`
	Links  []linkDoc  `json:"links"`
}

func collectionID(brandID int64) string { return fmt.Sprintf("Q%d", brandID) }

func brandDoc(b *model.Brand) collectionDoc {
	id := collectionID(b.ID)
	doc := collectionDoc{
		ID: id,
		Links: []linkDoc{
			{Href: "/collections/" + id, Rel: "self", Type: "application/json"},
			{Href: "/collections/" + id + "/items", Rel: "items", Type: "application/geo+json"},
		},
	}
	if b.BBox != nil {
		doc.Extent = &extentDoc{}
		doc.Extent.Spatial.BBox = [][]float64{b.BBox.Slice()}
	}
	return doc
}

// handleCatalog lists every brand collection. Last-Modified reflects the
// newest brand so catalog consumers can poll cheaply.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	brands, err := s.store.ListBrands(r.Context())
	if err != nil {
		zap.L().Error("list brands", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	docs := make([]collectionDoc, 0, len(brands))
	var newest time.Time
	for i := range brands {
		docs = append(docs, brandDoc(&brands[i]))
		if brands[i].LastModified.After(newest) {
			newest = brands[i].LastModified
		}
	}
	if !newest.IsZero() {
		w.Header().Set("Last-Modified", newest.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": docs,
		"links": []linkDoc{
			{Href: "/collections", Rel: "self", Type: "application/json"},
		},
	})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	brandID, ok := brandIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	brand, err := s.store.GetBrandExtent(r.Context(), brandID)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	if err != nil {
		zap.L().Error("get brand", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Last-Modified", brand.LastModified.UTC().Format(http.TimeFormat))
	writeJSON(w, http.StatusOK, brandDoc(brand))
}

type geoFeature struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Geometry   json.RawMessage  `json:"geometry"`
	Properties model.Properties `json:"properties"`
}

func encodeFeature(f *model.Feature) ([]byte, error) {
	g, err := geojson.Marshal(geom.NewPointFlat(geom.XY, []float64{f.Lng, f.Lat}))
	if err != nil {
		return nil, eris.Wrapf(err, "server: encode feature %s", f.ID)
	}
	return json.Marshal(geoFeature{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   g,
		Properties: f.Properties,
	})
}

// handleItems streams the brand's full dataset as a GeoJSON FeatureCollection.
// Features are written one at a time and flushed, so memory stays flat no
// matter how large the dataset is.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	brandID, ok := brandIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	brand, err := s.store.GetBrandExtent(r.Context(), brandID)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}
	if err != nil {
		zap.L().Error("get brand", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	cursor, err := s.store.StreamFeatures(r.Context(), brandID)
	if err != nil {
		zap.L().Error("stream features", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer cursor.Close()

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Last-Modified", brand.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	io.WriteString(w, `{"type":"FeatureCollection","features":[`)
	first := true
	for cursor.Next() {
		buf, err := encodeFeature(cursor.Feature())
		if err != nil {
			// Headers are gone; log and truncate the stream.
			zap.L().Error("encode feature", zap.Int64("brand_id", brandID), zap.Error(err))
			return
		}
		if !first {
			io.WriteString(w, ",")
		}
		first = false
		if _, err := w.Write(buf); err != nil {
			// Client went away.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := cursor.Err(); err != nil {
		zap.L().Error("stream features", zap.Int64("brand_id", brandID), zap.Error(err))
		return
	}
	io.WriteString(w, `]}`)
	if flusher != nil {
		flusher.Flush()
	}
}

// maxIngestBytes bounds one uploaded dataset.
const maxIngestBytes = 256 << 20

// handleIngest replaces the brand's dataset from a multipart upload. The
// "scraped" part carries the GeoJSON document; an optional "log" field is
// stored with the scrape record.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.ingestRate.Allow() {
		writeError(w, http.StatusTooManyRequests, "ingest rate exceeded")
		return
	}
	brandID, ok := brandIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such collection")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)
	file, _, err := r.FormFile("scraped")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing scraped file")
		return
	}
	defer file.Close()
	doc, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read scraped file")
		return
	}
	errorLog := r.FormValue("log")

	user := currentUser(r)
	count, err := s.store.ReplaceBrandDataset(r.Context(), brandID, doc, time.Now().UTC())
	if eris.Is(err, store.ErrInvalidInput) {
		// Failed attempts land in the scrape log too.
		if errorLog == "" {
			errorLog = err.Error()
		}
		if _, logErr := s.store.RecordScrape(r.Context(), user.Username, 0, errorLog); logErr != nil {
			zap.L().Warn("record failed scrape", zap.Error(logErr))
		}
		writeError(w, http.StatusBadRequest, "invalid dataset")
		return
	}
	if err != nil {
		zap.L().Error("replace dataset", zap.Int64("brand_id", brandID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	scrape, err := s.store.RecordScrape(r.Context(), user.Username, count, errorLog)
	if err != nil {
		zap.L().Error("record scrape", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	zap.L().Info("dataset replaced",
		zap.Int64("brand_id", brandID),
		zap.String("user", user.Username),
		zap.Int("features", count))
	w.Header().Set("Location", "/collections/"+collectionID(brandID)+"/items")
	writeJSON(w, http.StatusCreated, scrape)
}
