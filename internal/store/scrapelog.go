package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/brandy/internal/model"
)

// RecordScrape logs one ingest attempt and returns the stored record.
func (s *Store) RecordScrape(ctx context.Context, scraper string, numFeatures int, errorLog string) (*model.Scrape, error) {
	rec := &model.Scrape{
		ID:          uuid.New().String(),
		Scraper:     scraper,
		ScrapedAt:   time.Now().UTC(),
		NumFeatures: numFeatures,
		ErrorLog:    errorLog,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape (id, scraper, scraped, num_features, error_log)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Scraper, rec.ScrapedAt, rec.NumFeatures, rec.ErrorLog)
	if err != nil {
		return nil, eris.Wrap(err, "store: record scrape")
	}
	return rec, nil
}

// ListScrapes returns the most recent scrape records, newest first.
func (s *Store) ListScrapes(ctx context.Context, limit int) ([]model.Scrape, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scraper, scraped, num_features, error_log
		 FROM scrape ORDER BY scraped DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scrapes")
	}
	defer rows.Close()

	var scrapes []model.Scrape
	for rows.Next() {
		var rec model.Scrape
		if err := rows.Scan(&rec.ID, &rec.Scraper, &rec.ScrapedAt,
			&rec.NumFeatures, &rec.ErrorLog); err != nil {
			return nil, eris.Wrap(err, "store: scan scrape")
		}
		scrapes = append(scrapes, rec)
	}
	return scrapes, eris.Wrap(rows.Err(), "store: iterate scrapes")
}

// GetScrape returns one scrape record by id.
func (s *Store) GetScrape(ctx context.Context, id string) (*model.Scrape, error) {
	var rec model.Scrape
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scraper, scraped, num_features, error_log
		 FROM scrape WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Scraper, &rec.ScrapedAt, &rec.NumFeatures, &rec.ErrorLog)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "store: scrape %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get scrape %s", id)
	}
	return &rec, nil
}
