package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brandy/internal/model"
)

func TestListBrands_OrderedByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{99, 7, 72} {
		_, err := s.ReplaceBrandDataset(ctx, id, []byte(twoShops), time.Now())
		require.NoError(t, err)
	}

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 3)
	assert.Equal(t, int64(7), brands[0].ID)
	assert.Equal(t, int64(72), brands[1].ID)
	assert.Equal(t, int64(99), brands[2].ID)
}

func TestFindFeaturesInBox(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceBrandDataset(ctx, 72, []byte(twoShops), time.Now())
	require.NoError(t, err)

	// Box around shop A only.
	features, err := s.FindFeaturesInBox(ctx, 72, model.BBox{
		MinLng: 8.45, MinLat: 47.55, MaxLng: 8.55, MaxLat: 47.65,
	}, 10)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "A", features[0].ID)

	// Box around both, limit 1 returns the first in index order.
	both := model.BBox{MinLng: 8.4, MinLat: 47.2, MaxLng: 8.7, MaxLat: 47.7}
	features, err = s.FindFeaturesInBox(ctx, 72, both, 1)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "A", features[0].ID)

	// Identical inputs give identical results.
	again, err := s.FindFeaturesInBox(ctx, 72, both, 1)
	require.NoError(t, err)
	assert.Equal(t, features, again)

	// Empty box misses everything.
	features, err = s.FindFeaturesInBox(ctx, 72, model.BBox{
		MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1,
	}, 10)
	require.NoError(t, err)
	assert.Empty(t, features)

	// Wrong brand misses everything.
	features, err = s.FindFeaturesInBox(ctx, 99, both, 10)
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestFindFeaturesInBox_NeverReturnsPointOutsideBox(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A cluster of points around the box edges.
	var sb strings.Builder
	sb.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		lng := 8.0 + float64(i)*0.01
		fmt.Fprintf(&sb,
			`{"type":"Feature","geometry":{"type":"Point","coordinates":[%g,47.5]},"properties":{"ref":"P%d"}}`,
			lng, i)
	}
	sb.WriteString(`]}`)
	_, err := s.ReplaceBrandDataset(ctx, 72, []byte(sb.String()), time.Now())
	require.NoError(t, err)

	box := model.BBox{MinLng: 8.105, MinLat: 47.4, MaxLng: 8.205, MaxLat: 47.6}
	features, err := s.FindFeaturesInBox(ctx, 72, box, 100)
	require.NoError(t, err)
	require.NotEmpty(t, features)
	for _, f := range features {
		assert.True(t, box.Contains(f.Lng, f.Lat), "feature %s at (%g,%g) outside box", f.ID, f.Lng, f.Lat)
	}

	// Limit caps the result count.
	capped, err := s.FindFeaturesInBox(ctx, 72, box, 3)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestStreamFeatures_RestartsFromTheTop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceBrandDataset(ctx, 72, []byte(twoShops), time.Now())
	require.NoError(t, err)

	// Abandon a cursor after one row; a fresh cursor re-reads everything.
	cursor, err := s.StreamFeatures(ctx, 72)
	require.NoError(t, err)
	require.True(t, cursor.Next())
	first := cursor.Feature().ID
	require.NoError(t, cursor.Close())

	again := collectFeatures(t, s, 72)
	require.Len(t, again, 2)
	assert.Equal(t, first, again[0].ID)
}

func TestStreamPoints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ReplaceBrandDataset(ctx, 72, []byte(twoShops), time.Now())
	require.NoError(t, err)

	cursor, err := s.StreamPoints(ctx, 72)
	require.NoError(t, err)
	defer cursor.Close()

	var points [][2]float64
	for cursor.Next() {
		lng, lat := cursor.Point()
		points = append(points, [2]float64{lng, lat})
	}
	require.NoError(t, cursor.Err())
	assert.Equal(t, [][2]float64{{8.5, 47.6}, {8.6, 47.3}}, points)
}

func TestScrapeLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.RecordScrape(ctx, "Q72", 2, "")
	require.NoError(t, err)
	_, err = s.RecordScrape(ctx, "Q99", 0, "fetch failed: 503")
	require.NoError(t, err)

	scrapes, err := s.ListScrapes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scrapes, 2)

	got, err := s.GetScrape(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q72", got.Scraper)
	assert.Equal(t, 2, got.NumFeatures)

	_, err = s.GetScrape(ctx, "nope")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "zoe", "hash-z", false)
	require.NoError(t, err)
	admin, err := s.CreateUser(ctx, "ada", "hash-a", true)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	// Duplicate usernames are rejected by the schema.
	_, err = s.CreateUser(ctx, "zoe", "other", false)
	require.Error(t, err)

	got, err := s.GetUser(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", got.PasswordHash)
	assert.True(t, got.IsAdmin)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada", users[0].Username)
	assert.Equal(t, "zoe", users[1].Username)

	_, err = s.GetUser(ctx, "ghost")
	assert.True(t, eris.Is(err, ErrNotFound))
}
