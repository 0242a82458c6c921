package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

const lotColumns = `id, name, address, latitude, longitude, capacity, available_spots,
	description, place_id, icon_url, marker_color, is_active,
	created_at, updated_at, created_by, updated_by`

type LotRepository struct {
	pool *pgxpool.Pool
}

func NewLotRepository(pool *pgxpool.Pool) *LotRepository {
	return &LotRepository{pool: pool}
}

func (r *LotRepository) Create(ctx context.Context, lot model.ParkingLot) (model.ParkingLot, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO parking_lots (name, address, latitude, longitude, capacity, available_spots,
		                           description, place_id, icon_url, marker_color, is_active,
		                           created_at, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+lotColumns,
		lot.Name, lot.Address, lot.Location.Lat, lot.Location.Lng, lot.Capacity, lot.AvailableSpots,
		lot.Description, lot.PlaceID, lot.IconURL, lot.MarkerColor, lot.Active,
		lot.CreatedAt, lot.CreatedBy, lot.UpdatedBy)

	created, err := scanLot(row)
	if err != nil {
		return model.ParkingLot{}, fmt.Errorf("create parking lot: %w", err)
	}
	return created, nil
}

func (r *LotRepository) FindByID(ctx context.Context, id int64) (model.ParkingLot, error) {
	lot, err := scanLot(r.pool.QueryRow(ctx,
		`SELECT `+lotColumns+` FROM parking_lots WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ParkingLot{}, model.ErrLotNotFound
	}
	if err != nil {
		return model.ParkingLot{}, fmt.Errorf("find parking lot by id: %w", err)
	}
	return lot, nil
}

func (r *LotRepository) ListActive(ctx context.Context) ([]model.ParkingLot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lotColumns+` FROM parking_lots WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list parking lots: %w", err)
	}
	return collectLots(rows)
}

// ListActiveInBox returns active lots inside box. The result is a superset of
// any circle the box was built for and must be refined by distance.
func (r *LotRepository) ListActiveInBox(ctx context.Context, box geo.BoundingBox) ([]model.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots
		WHERE is_active AND latitude BETWEEN $1 AND $2`
	args := []any{box.MinLat, box.MaxLat}
	if !box.LngUnbounded {
		query += ` AND longitude BETWEEN $3 AND $4`
		args = append(args, box.MinLng, box.MaxLng)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parking lots in box: %w", err)
	}
	return collectLots(rows)
}

func (r *LotRepository) Update(ctx context.Context, lot model.ParkingLot) (model.ParkingLot, error) {
	updated, err := scanLot(r.pool.QueryRow(ctx,
		`UPDATE parking_lots
		 SET name = $2, address = $3, latitude = $4, longitude = $5, capacity = $6,
		     available_spots = $7, description = $8, is_active = $9,
		     updated_at = $10, updated_by = $11
		 WHERE id = $1
		 RETURNING `+lotColumns,
		lot.ID, lot.Name, lot.Address, lot.Location.Lat, lot.Location.Lng, lot.Capacity,
		lot.AvailableSpots, lot.Description, lot.Active, lot.UpdatedAt, lot.UpdatedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ParkingLot{}, model.ErrLotNotFound
	}
	if err != nil {
		return model.ParkingLot{}, fmt.Errorf("update parking lot: %w", err)
	}
	return updated, nil
}

// Deactivate soft-deletes a lot. Rows are never removed.
func (r *LotRepository) Deactivate(ctx context.Context, id int64, updatedBy string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE parking_lots SET is_active = FALSE, updated_at = $2, updated_by = $3 WHERE id = $1`,
		id, at, updatedBy)
	if err != nil {
		return fmt.Errorf("deactivate parking lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrLotNotFound
	}
	return nil
}

func collectLots(rows pgx.Rows) ([]model.ParkingLot, error) {
	defer rows.Close()

	lots := make([]model.ParkingLot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parking lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func scanLot(row pgx.Row) (model.ParkingLot, error) {
	var lot model.ParkingLot
	err := row.Scan(&lot.ID, &lot.Name, &lot.Address, &lot.Location.Lat, &lot.Location.Lng,
		&lot.Capacity, &lot.AvailableSpots, &lot.Description, &lot.PlaceID, &lot.IconURL,
		&lot.MarkerColor, &lot.Active, &lot.CreatedAt, &lot.UpdatedAt, &lot.CreatedBy, &lot.UpdatedBy)
	return lot, err
}
