package store

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brandy/internal/fingerprint"
	"github.com/sells-group/brandy/internal/geometry"
	"github.com/sells-group/brandy/internal/model"
)

// ingestDocument mirrors the RFC 7946 FeatureCollection shape accepted on
// ingest. Geometry stays raw so the bounding-box walker sees the original
// structure; properties must be a string->string bag.
type ingestDocument struct {
	Type     string          `json:"type"`
	Features []ingestFeature `json:"features"`
}

type ingestFeature struct {
	ID         json.RawMessage  `json:"id"`
	Geometry   json.RawMessage  `json:"geometry"`
	Properties model.Properties `json:"properties"`
}

// featureRow is a fully validated feature ready for insertion.
type featureRow struct {
	id         string
	box        model.BBox
	lng, lat   float64
	hashHi     int64
	hashLo     int64
	propsBlob  []byte
}

// ReplaceBrandDataset atomically replaces the brand's entire dataset with the
// given FeatureCollection document. Features whose content fingerprint is
// unchanged keep their previous last_modified timestamp. Returns the number
// of features stored. The replacement is a single transaction: readers never
// observe a half-replaced brand.
func (s *Store) ReplaceBrandDataset(ctx context.Context, brandID int64, doc []byte, now time.Time) (int, error) {
	now = now.UTC()

	rows, brandBox, err := parseIngest(doc)
	if err != nil {
		return 0, err
	}

	lock := s.brandLock(brandID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin replace")
	}
	defer tx.Rollback()

	old, err := loadOldFeatures(ctx, tx, brandID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM brand WHERE brand_id = ?`, brandID); err != nil {
		return 0, eris.Wrap(err, "store: delete brand")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM brand_feature WHERE brand_id = ?`, brandID); err != nil {
		return 0, eris.Wrap(err, "store: delete brand features")
	}
	if err := s.idx.Clear(ctx, tx, brandID); err != nil {
		return 0, err
	}

	var brandLastModified time.Time
	for _, row := range rows {
		lastModified := now
		if prev, ok := old[row.id]; ok && prev.hashHi == row.hashHi && prev.hashLo == row.hashLo {
			lastModified = prev.lastModified
		}
		if lastModified.After(brandLastModified) {
			brandLastModified = lastModified
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO brand_feature
			     (brand_id, feature_id, lng, lat, hash_hi, hash_lo, last_modified, props)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			brandID, row.id, row.lng, row.lat, row.hashHi, row.hashLo, lastModified, row.propsBlob)
		if err != nil {
			return 0, eris.Wrapf(err, "store: insert feature %s", row.id)
		}
		handle, err := res.LastInsertId()
		if err != nil {
			return 0, eris.Wrap(err, "store: feature handle")
		}
		if err := s.idx.Insert(ctx, tx, brandID, handle, row.box); err != nil {
			return 0, err
		}
	}

	if brandLastModified.IsZero() {
		brandLastModified = now
	}

	var minLng, minLat, maxLng, maxLat any
	if brandBox != nil {
		minLng, minLat = brandBox.MinLng, brandBox.MinLat
		maxLng, maxLat = brandBox.MaxLng, brandBox.MaxLat
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO brand
		     (brand_id, last_checked, last_modified, min_lng, min_lat, max_lng, max_lat)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		brandID, now, brandLastModified, minLng, minLat, maxLng, maxLat); err != nil {
		return 0, eris.Wrap(err, "store: insert brand")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit replace")
	}
	return len(rows), nil
}

// parseIngest validates the document and precomputes everything needed for
// insertion, so validation failures happen before any write.
func parseIngest(doc []byte) ([]featureRow, *model.BBox, error) {
	var fc ingestDocument
	if err := json.Unmarshal(doc, &fc); err != nil {
		return nil, nil, eris.Wrap(ErrInvalidInput, "store: parse feature collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, eris.Wrap(ErrInvalidInput, "store: not a FeatureCollection")
	}

	// An explicitly empty features array is a valid dataset; anything else
	// must produce a collection-level bounding box.
	var brandBox *model.BBox
	if len(fc.Features) > 0 {
		var raw any
		if err := json.Unmarshal(doc, &raw); err != nil {
			return nil, nil, eris.Wrap(ErrInvalidInput, "store: decode document")
		}
		brandBox = geometry.BoundingBox(raw)
		if brandBox == nil {
			return nil, nil, eris.Wrap(ErrInvalidInput, "store: no collection bounding box")
		}
	}

	rows := make([]featureRow, 0, len(fc.Features))
	for i, f := range fc.Features {
		var rawGeom any
		if len(f.Geometry) > 0 {
			if err := json.Unmarshal(f.Geometry, &rawGeom); err != nil {
				return nil, nil, eris.Wrapf(ErrInvalidInput, "store: feature %d geometry", i)
			}
		}
		box := geometry.BoundingBox(rawGeom)
		if box == nil {
			return nil, nil, eris.Wrapf(ErrInvalidInput, "store: feature %d has no bounding box", i)
		}

		props := f.Properties
		if props == nil {
			props = model.Properties{}
		}
		id, err := deriveFeatureID(f.ID, props)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "store: feature %d", i)
		}

		lng, lat := box.Center()
		propsJSON, err := json.Marshal(props)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "store: feature %s properties", id)
		}
		blob, err := compress(propsJSON)
		if err != nil {
			return nil, nil, err
		}
		hi, lo := fingerprint.Sum(id, lng, lat, propsJSON)

		rows = append(rows, featureRow{
			id:        id,
			box:       *box,
			lng:       lng,
			lat:       lat,
			hashHi:    hi,
			hashLo:    lo,
			propsBlob: blob,
		})
	}
	return rows, brandBox, nil
}

// deriveFeatureID resolves a feature's stable identity: the top-level id when
// present, otherwise the required "ref" property.
func deriveFeatureID(rawID json.RawMessage, props model.Properties) (string, error) {
	if len(rawID) > 0 && !bytes.Equal(rawID, []byte("null")) {
		var str string
		if err := json.Unmarshal(rawID, &str); err == nil {
			return str, nil
		}
		var num float64
		if err := json.Unmarshal(rawID, &num); err == nil {
			return strconv.FormatFloat(num, 'f', -1, 64), nil
		}
		return "", eris.Wrap(ErrInvalidInput, "unusable feature id")
	}
	if ref, ok := props["ref"]; ok && ref != "" {
		return ref, nil
	}
	return "", eris.Wrap(ErrInvalidInput, "missing feature id and ref property")
}

type oldFeature struct {
	hashHi       int64
	hashLo       int64
	lastModified time.Time
}

func loadOldFeatures(ctx context.Context, tx dbtx, brandID int64) (map[string]oldFeature, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT feature_id, hash_hi, hash_lo, last_modified
		 FROM brand_feature WHERE brand_id = ?`, brandID)
	if err != nil {
		return nil, eris.Wrap(err, "store: load old features")
	}
	defer rows.Close()

	old := make(map[string]oldFeature)
	for rows.Next() {
		var id string
		var f oldFeature
		if err := rows.Scan(&id, &f.hashHi, &f.hashLo, &f.lastModified); err != nil {
			return nil, eris.Wrap(err, "store: scan old feature")
		}
		old[id] = f
	}
	return old, eris.Wrap(rows.Err(), "store: iterate old features")
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, eris.Wrap(err, "store: zlib writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, eris.Wrap(err, "store: compress properties")
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "store: flush properties")
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, eris.Wrap(err, "store: zlib reader")
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, eris.Wrap(err, "store: decompress properties")
	}
	return buf.Bytes(), nil
}
