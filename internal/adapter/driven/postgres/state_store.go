// Package postgres implements the core ports this application needs from
// durable storage, directly against pgx/v5: the retrieval pack carries no
// sqlc-generated query layer, so the SQL here is hand-written.
package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// StateStore implements port.StateStore over a pgxpool.Pool.
type StateStore struct {
	pool *pgxpool.Pool
}

func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

func (s *StateStore) UpsertQuery(ctx context.Context, canonical *port.CanonicalResult) (*domain.Query, error) {
	now := time.Now()
	const q = `
		INSERT INTO queries (id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = $13, canonical_url = $3
		RETURNING id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at`

	row := s.pool.QueryRow(ctx, q,
		canonical.QueryID, canonical.Description, canonical.CanonicalURL, canonical.Region, canonical.Kind,
		canonical.Stations, canonical.MetroLine, canonical.PriceMin, canonical.PriceMax,
		canonical.Sections, canonical.Rooms, canonical.Floor, now)

	return scanQuery(row)
}

func (s *StateStore) GetExistingPropertyIDs(ctx context.Context, queryID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT listing_id FROM query_rentals WHERE query_id = $1`, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (s *StateStore) OpenSession(ctx context.Context, queryID string, opts json.RawMessage, stationCount int, multiStation bool) (string, error) {
	id := uuid.New()
	const q = `
		INSERT INTO crawl_sessions (id, query_id, started_at, station_count, multi_station, options)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, q, id, queryID, time.Now(), stationCount, multiStation, opts); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *StateStore) PersistListings(ctx context.Context, sessionID, queryID string, observed []domain.ObservedListing, newIDs map[string]struct{}) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sessionUUID, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("persist listings: %w", err)
	}

	now := time.Now()
	for _, ol := range observed {
		hash := contentHash(ol.Listing)

		var existingHash string
		err := tx.QueryRow(ctx, `SELECT content_hash FROM rentals WHERE id = $1`, ol.ID).Scan(&existingHash)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx, `
				INSERT INTO rentals (id, title, link, house_type, rooms, tags_list, image_urls, price_text, content_hash, first_seen_at, last_seen_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
				ol.ID, ol.Title, ol.Link, ol.HouseType, ol.Rooms, ol.TagsList, ol.ImageURLs, ol.PriceText, hash, now); err != nil {
				return err
			}
		case err != nil:
			return err
		case existingHash != hash:
			if _, err := tx.Exec(ctx, `
				UPDATE rentals SET title=$2, link=$3, house_type=$4, rooms=$5, tags_list=$6, image_urls=$7, price_text=$8, content_hash=$9, last_seen_at=$10
				WHERE id=$1`,
				ol.ID, ol.Title, ol.Link, ol.HouseType, ol.Rooms, ol.TagsList, ol.ImageURLs, ol.PriceText, hash, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM metro_distances WHERE listing_id = $1`, ol.ID); err != nil {
				return err
			}
		default:
			if _, err := tx.Exec(ctx, `UPDATE rentals SET last_seen_at = $2 WHERE id = $1`, ol.ID, now); err != nil {
				return err
			}
		}

		if existingHash == "" || existingHash != hash {
			for _, m := range ol.MetroDistances {
				if _, err := tx.Exec(ctx, `
					INSERT INTO metro_distances (listing_id, station_id, station_name, metro_value_text, distance_meters)
					VALUES ($1,$2,$3,$4,$5)`,
					ol.ID, m.StationID, m.StationName, m.MetroValueText, m.DistanceMeters); err != nil {
					return err
				}
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO query_rentals (query_id, listing_id, first_seen_at)
			VALUES ($1,$2,$3) ON CONFLICT (query_id, listing_id) DO NOTHING`,
			queryID, ol.ID, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO crawl_session_rentals (session_id, listing_id)
			VALUES ($1,$2) ON CONFLICT DO NOTHING`, sessionUUID, ol.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *StateStore) CloseSession(ctx context.Context, sessionID string, summary port.PersistSummary) error {
	const q = `
		UPDATE crawl_sessions
		SET finished_at = $2, total_listings = $3, new_listings = $4, notifications_sent = $5, error_count = $6
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, sessionID, time.Now(), summary.TotalListings, summary.NewListings, summary.NotificationsSent, summary.ErrorCount)
	return err
}

func (s *StateStore) ClearQuery(ctx context.Context, queryID string) (port.ClearResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return port.ClearResult{}, err
	}
	defer tx.Rollback(ctx)

	var result port.ClearResult

	if err := tx.QueryRow(ctx, `SELECT count(*) FROM crawl_sessions WHERE query_id = $1`, queryID).Scan(&result.SessionsDeleted); err != nil {
		return port.ClearResult{}, err
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM query_rentals WHERE query_id = $1`, queryID).Scan(&result.QueryListingsDeleted); err != nil {
		return port.ClearResult{}, err
	}

	// Listings linked only through this query become orphans once it's
	// gone; a listing shared with another query must survive.
	rows, err := tx.Query(ctx, `SELECT listing_id FROM query_rentals WHERE query_id = $1`, queryID)
	if err != nil {
		return port.ClearResult{}, err
	}
	var linkedIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return port.ClearResult{}, err
		}
		linkedIDs = append(linkedIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return port.ClearResult{}, err
	}

	// Deleting the query cascades crawl_sessions and query_rentals (FKs
	// declared ON DELETE CASCADE); rentals themselves are untouched since
	// they may still be referenced by other queries.
	if _, err := tx.Exec(ctx, `DELETE FROM queries WHERE id = $1`, queryID); err != nil {
		return port.ClearResult{}, err
	}

	var orphanIDs []string
	for _, id := range linkedIDs {
		var stillLinked bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM query_rentals WHERE listing_id = $1)`, id).Scan(&stillLinked); err != nil {
			return port.ClearResult{}, err
		}
		if !stillLinked {
			orphanIDs = append(orphanIDs, id)
		}
	}

	if len(orphanIDs) > 0 {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM metro_distances WHERE listing_id = ANY($1)`, orphanIDs).Scan(&result.MetroDistancesDeleted); err != nil {
			return port.ClearResult{}, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rentals WHERE id = ANY($1)`, orphanIDs); err != nil {
			return port.ClearResult{}, err
		}
	}
	result.ListingsDeleted = len(orphanIDs)

	if err := tx.Commit(ctx); err != nil {
		return port.ClearResult{}, err
	}
	return result, nil
}

func (s *StateStore) GetQuery(ctx context.Context, queryID string) (*domain.Query, error) {
	const q = `SELECT id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at FROM queries WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, queryID)
	query, err := scanQuery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQueryNotFound
	}
	return query, err
}

func (s *StateStore) ListQueryRentals(ctx context.Context, queryID string, limit int, sinceDate *string) ([]domain.Listing, error) {
	args := []interface{}{queryID}
	where := "qr.query_id = $1"
	if sinceDate != nil {
		args = append(args, *sinceDate)
		where += fmt.Sprintf(" AND r.last_seen_at >= $%d", len(args))
	}
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT r.id, r.title, r.link, r.house_type, r.rooms, r.tags_list, r.image_urls, r.price_text, r.content_hash, r.first_seen_at, r.last_seen_at
		FROM rentals r JOIN query_rentals qr ON qr.listing_id = r.id
		WHERE %s ORDER BY r.last_seen_at DESC LIMIT $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Link, &l.HouseType, &l.Rooms, &l.TagsList, &l.ImageURLs, &l.PriceText, &l.ContentHash, &l.FirstSeenAt, &l.LastSeenAt); err != nil {
			return nil, err
		}
		facets, err := s.metroDistancesFor(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		l.MetroDistances = facets
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *StateStore) metroDistancesFor(ctx context.Context, listingID string) ([]domain.MetroDistance, error) {
	rows, err := s.pool.Query(ctx, `SELECT station_id, station_name, metro_value_text, distance_meters FROM metro_distances WHERE listing_id = $1`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facets []domain.MetroDistance
	for rows.Next() {
		f := domain.MetroDistance{ListingID: listingID}
		if err := rows.Scan(&f.StationID, &f.StationName, &f.MetroValueText, &f.DistanceMeters); err != nil {
			return nil, err
		}
		facets = append(facets, f)
	}
	return facets, rows.Err()
}

func (s *StateStore) ListQueries(ctx context.Context, filter port.ListQueriesFilter) ([]*domain.Query, int64, error) {
	var where []string
	var args []interface{}

	if filter.Region != nil {
		args = append(args, *filter.Region)
		where = append(where, fmt.Sprintf("region = $%d", len(args)))
	}
	if filter.SinceDate != nil {
		args = append(args, *filter.SinceDate)
		where = append(where, fmt.Sprintf("last_seen_at >= $%d", len(args)))
	}
	if filter.HasRentals != nil {
		if *filter.HasRentals {
			where = append(where, "EXISTS (SELECT 1 FROM query_rentals qr WHERE qr.query_id = queries.id)")
		} else {
			where = append(where, "NOT EXISTS (SELECT 1 FROM query_rentals qr WHERE qr.query_id = queries.id)")
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM queries "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	listQ := fmt.Sprintf(`
		SELECT id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at
		FROM queries %s ORDER BY last_seen_at DESC LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var queries []*domain.Query
	for rows.Next() {
		q, err := scanQueryRow(rows)
		if err != nil {
			return nil, 0, err
		}
		queries = append(queries, q)
	}
	return queries, total, rows.Err()
}

func (s *StateStore) ListSimilarQueries(ctx context.Context, queryID string, limit int) ([]domain.SimilarQuery, error) {
	ref, err := s.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at
		FROM queries WHERE region = $1 AND id != $2`, ref.Region, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*domain.Query
	for rows.Next() {
		q, err := scanQueryRow(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var similar []domain.SimilarQuery
	for _, c := range candidates {
		if score := domain.SimilarityScore(ref, c); score > 0 {
			similar = append(similar, domain.SimilarQuery{Query: c, Score: score})
		}
	}
	sort.Slice(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	if limit > 0 && limit < len(similar) {
		similar = similar[:limit]
	}
	return similar, nil
}

func (s *StateStore) Statistics(ctx context.Context) (*domain.QueryStatistics, error) {
	stats := &domain.QueryStatistics{ByRegion: map[string]int64{}, CrawlFrequency: map[string]int64{}}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM queries`).Scan(&stats.TotalQueries); err != nil {
		return nil, err
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM rentals`).Scan(&stats.TotalListings); err != nil {
		return nil, err
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM crawl_sessions`).Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT region, count(*) FROM queries GROUP BY region`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var region string
		var count int64
		if err := rows.Scan(&region, &count); err != nil {
			return nil, err
		}
		stats.ByRegion[region] = count
	}
	return stats, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanQuery(row scannable) (*domain.Query, error) {
	return scanQueryRow(row)
}

func scanQueryRow(row scannable) (*domain.Query, error) {
	var q domain.Query
	err := row.Scan(&q.ID, &q.Description, &q.CanonicalURL, &q.Region, &q.Kind, &q.Stations, &q.MetroLine, &q.PriceMin, &q.PriceMax, &q.Sections, &q.Rooms, &q.Floor, &q.FirstSeenAt, &q.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQueriesDueForRecrawl returns queries whose lastSeenAt predates
// olderThan, the set the scheduled recrawl worker re-crawls on each pass.
func (s *StateStore) ListQueriesDueForRecrawl(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Query, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, description, canonical_url, region, kind, stations, metro_line, price_min, price_max, sections, rooms, floor, first_seen_at, last_seen_at
		FROM queries WHERE last_seen_at < $1 ORDER BY last_seen_at ASC LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []*domain.Query
	for rows.Next() {
		q, err := scanQueryRow(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// contentHash fingerprints the fields that matter for "did this listing
// change" purposes: title, houseType, rooms, tagsList, a sorted-prefix of
// imageUrls, and normalized metroDistances. Unrelated fields (link,
// priceText) never trigger a re-persist on their own churn.
func contentHash(l domain.Listing) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", l.Title, l.HouseType, l.Rooms)

	tags := append([]string(nil), l.TagsList...)
	sort.Strings(tags)
	fmt.Fprintf(h, "%s|", strings.Join(tags, ","))

	images := append([]string(nil), l.ImageURLs...)
	sort.Strings(images)
	if len(images) > 10 {
		images = images[:10]
	}
	fmt.Fprintf(h, "%s|", strings.Join(images, ","))

	facets := append([]domain.MetroDistance(nil), l.MetroDistances...)
	sort.Slice(facets, func(i, j int) bool {
		return facetSortKey(facets[i]) < facetSortKey(facets[j])
	})
	for _, f := range facets {
		fmt.Fprintf(h, "%s|", facetSortKey(f))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func facetSortKey(m domain.MetroDistance) string {
	station := ""
	if m.StationID != nil {
		station = *m.StationID
	}
	return station + "|" + m.StationName + "|" + m.MetroValueText
}
