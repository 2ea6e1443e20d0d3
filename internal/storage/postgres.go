package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/carpool-matching/internal/models"
)

// PostgresStore implements every store interface on one sql.DB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) PingContext(ctx context.Context) error { return p.db.PingContext(ctx) }

const reservationColumns = `id, requester_id, role, origin_lat, origin_lon, dest_lat, dest_lon,
	status, earliest_departure, latest_departure, earliest_arrival, latest_arrival,
	detour_threshold_sec, unit_price, gender, same_gender_only, group_id, route_distance_m,
	created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*models.TripRequest, error) {
	var t models.TripRequest
	var earliestDep, latestDep, earliestArr, latestArr sql.NullTime
	err := row.Scan(&t.ID, &t.RequesterID, &t.Role, &t.Origin.Lat, &t.Origin.Lon,
		&t.Destination.Lat, &t.Destination.Lon, &t.Status,
		&earliestDep, &latestDep, &earliestArr, &latestArr,
		&t.DetourThresholdSec, &t.UnitPrice, &t.Gender, &t.SameGenderOnly,
		&t.GroupID, &t.RouteDistanceMtr, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if earliestDep.Valid {
		t.EarliestDeparture = earliestDep.Time
	}
	if latestDep.Valid {
		t.LatestDeparture = latestDep.Time
	}
	if earliestArr.Valid {
		t.EarliestArrival = earliestArr.Time
	}
	if latestArr.Valid {
		t.LatestArrival = latestArr.Time
	}
	return &t, nil
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*models.TripRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	t, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return t, nil
}

// OpenRequests pushes the coarse origin filter into SQL as a bounding box;
// the precise radius check stays in the pipeline.
func (p *PostgresStore) OpenRequests(ctx context.Context, role models.Role, near models.Coord, radiusMeters float64) ([]*models.TripRequest, error) {
	latDelta := radiusMeters / 111320.0
	lonDelta := latDelta
	if c := math.Cos(near.Lat * math.Pi / 180); c > 0.01 {
		lonDelta = latDelta / c
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE role=$1 AND status IN ('searching','matched')
		AND origin_lat BETWEEN $2 AND $3 AND origin_lon BETWEEN $4 AND $5
		ORDER BY id`,
		role, near.Lat-latDelta, near.Lat+latDelta, near.Lon-lonDelta, near.Lon+lonDelta)
	if err != nil {
		return nil, fmt.Errorf("query open requests: %w", err)
	}
	defer rows.Close()
	out := make([]*models.TripRequest, 0)
	for rows.Next() {
		t, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan open request: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SearchingIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM reservations WHERE status='searching' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query searching ids: %w", err)
	}
	defer rows.Close()
	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	res, err := p.db.ExecContext(ctx, `UPDATE reservations SET status=$1, updated_at=$2 WHERE id=$3`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// IsBlocked checks both orderings in one query so callers never care which
// side created the entry.
func (p *PostgresStore) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	var blocked bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM blacklist
		WHERE (user_id=$1 AND blocked_user_id=$2) OR (user_id=$2 AND blocked_user_id=$1))`,
		a, b).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return blocked, nil
}

func (p *PostgresStore) SameGroup(ctx context.Context, a, b int64) (bool, error) {
	var same bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM group_members ga
		JOIN group_members gb ON ga.group_id = gb.group_id
		WHERE ga.user_id=$1 AND gb.user_id=$2)`,
		a, b).Scan(&same)
	if err != nil {
		return false, fmt.Errorf("group lookup: %w", err)
	}
	return same, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, s *models.MatchStatistic) error {
	now := time.Now()
	_, err := p.db.ExecContext(ctx, `INSERT INTO match_statistics
		(source_id, match_id, time_to_pickup_sec, time_to_dropoff_sec, created_on, modified_on)
		VALUES ($1,$2,$3,$4,$5,$5)
		ON CONFLICT (source_id, match_id) DO UPDATE SET
		time_to_pickup_sec=EXCLUDED.time_to_pickup_sec,
		time_to_dropoff_sec=EXCLUDED.time_to_dropoff_sec,
		modified_on=EXCLUDED.modified_on`,
		s.SourceID, s.MatchID, s.TimeToPickupSec, s.TimeToDropoffSec, now)
	if err != nil {
		return fmt.Errorf("upsert statistic (%d,%d): %w", s.SourceID, s.MatchID, err)
	}
	return nil
}

func (p *PostgresStore) BySource(ctx context.Context, sourceID int64) ([]models.MatchStatistic, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT source_id, match_id, time_to_pickup_sec,
		time_to_dropoff_sec, created_on, modified_on
		FROM match_statistics WHERE source_id=$1 ORDER BY match_id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()
	out := make([]models.MatchStatistic, 0)
	for rows.Next() {
		var s models.MatchStatistic
		if err := rows.Scan(&s.SourceID, &s.MatchID, &s.TimeToPickupSec,
			&s.TimeToDropoffSec, &s.CreatedOn, &s.ModifiedOn); err != nil {
			return nil, fmt.Errorf("scan statistic: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) PolicyFor(ctx context.Context, market string) (models.PricingPolicy, error) {
	var pol models.PricingPolicy
	err := p.db.QueryRowContext(ctx, `SELECT market, unit_price_per_km, driver_fee,
		passenger_fee, premium_rate, comfort_detour_sec
		FROM pricing_policies WHERE market=$1`, market).Scan(
		&pol.Market, &pol.UnitPricePerKm, &pol.DriverFee,
		&pol.PassengerFee, &pol.PremiumRate, &pol.ComfortDetourSec)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PricingPolicy{}, ErrPolicyNotFound
	}
	if err != nil {
		return models.PricingPolicy{}, fmt.Errorf("policy for %q: %w", market, err)
	}
	return pol, nil
}
