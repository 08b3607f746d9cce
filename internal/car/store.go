package car

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/westgate-auto/backend-westgate/internal/pricing"
)

// ErrNotFound is returned for lookups against unknown car ids.
var ErrNotFound = errors.New("car: not found")

// ListParams scopes and pages a car listing.
type ListParams struct {
	OwnerID *uuid.UUID
	Limit   int32
	Offset  int32
}

// PGStore persists cars and their payments in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore over the shared connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const carColumns = `c.id, c.owner_id, c.vin, c.make, c.model, c.year, c.auction, c.auction_location, c.port,
	c.body_type, c.fuel_type, c.purchase_price, c.insurance, c.fees, c.total_fee,
	COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.car_id = c.id), 0),
	c.created_at, c.updated_at`

// CreateCar inserts a car with its computed fee breakdown.
func (s *PGStore) CreateCar(ctx context.Context, c Car) (Car, error) {
	feesJSON, err := json.Marshal(c.Fees)
	if err != nil {
		return Car{}, fmt.Errorf("car: encode fees: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO cars (owner_id, vin, make, model, year, auction, auction_location, port,
			body_type, fuel_type, purchase_price, insurance, fees, total_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		c.OwnerID, c.VIN, c.Make, c.Model, c.Year, c.Auction, c.AuctionLocation, c.Port,
		c.BodyType, c.FuelType, c.PurchasePrice, c.Insurance, feesJSON, c.Fees.TotalFee)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Car{}, fmt.Errorf("car: insert: %w", err)
	}
	c.TotalDue = c.Fees.TotalFee
	return c, nil
}

// GetCar loads one car together with its payment total.
func (s *PGStore) GetCar(ctx context.Context, id uuid.UUID) (Car, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+carColumns+` FROM cars c WHERE c.id = $1`, id)
	c, err := scanCar(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Car{}, ErrNotFound
		}
		return Car{}, fmt.Errorf("car: load: %w", err)
	}
	return c, nil
}

// ListCars pages cars, newest first, optionally scoped to one owner. The total
// count covers the same scope so clients can render pagination.
func (s *PGStore) ListCars(ctx context.Context, params ListParams) ([]Car, int, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	var total int
	if params.OwnerID != nil {
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cars WHERE owner_id = $1`, *params.OwnerID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("car: count: %w", err)
		}
	} else {
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cars`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("car: count: %w", err)
		}
	}

	var (
		rows pgx.Rows
		err  error
	)
	if params.OwnerID != nil {
		rows, err = s.pool.Query(ctx, `
			SELECT `+carColumns+` FROM cars c
			WHERE c.owner_id = $1
			ORDER BY c.created_at DESC
			LIMIT $2 OFFSET $3`, *params.OwnerID, params.Limit, params.Offset)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+carColumns+` FROM cars c
			ORDER BY c.created_at DESC
			LIMIT $1 OFFSET $2`, params.Limit, params.Offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("car: list: %w", err)
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, 0, err
		}
		cars = append(cars, c)
	}
	return cars, total, rows.Err()
}

// UpdateCar rewrites a car's mutable fields and fee breakdown.
func (s *PGStore) UpdateCar(ctx context.Context, c Car) (Car, error) {
	feesJSON, err := json.Marshal(c.Fees)
	if err != nil {
		return Car{}, fmt.Errorf("car: encode fees: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE cars SET vin = $2, make = $3, model = $4, year = $5, auction = $6,
			auction_location = $7, port = $8, body_type = $9, fuel_type = $10,
			purchase_price = $11, insurance = $12, fees = $13, total_fee = $14, updated_at = now()
		WHERE id = $1`,
		c.ID, c.VIN, c.Make, c.Model, c.Year, c.Auction, c.AuctionLocation, c.Port,
		c.BodyType, c.FuelType, c.PurchasePrice, c.Insurance, feesJSON, c.Fees.TotalFee)
	if err != nil {
		return Car{}, fmt.Errorf("car: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Car{}, ErrNotFound
	}
	return s.GetCar(ctx, c.ID)
}

// UpdateCarFees rewrites only the fee breakdown, used by bulk recalculation.
func (s *PGStore) UpdateCarFees(ctx context.Context, id uuid.UUID, fees pricing.Breakdown) error {
	feesJSON, err := json.Marshal(fees)
	if err != nil {
		return fmt.Errorf("car: encode fees: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE cars SET fees = $2, total_fee = $3, updated_at = now() WHERE id = $1`,
		id, feesJSON, fees.TotalFee)
	if err != nil {
		return fmt.Errorf("car: update fees: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCar removes a car and, via cascade, its payments.
func (s *PGStore) DeleteCar(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("car: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CarsForRecalc streams the fleet into memory for a bulk fee refresh,
// optionally narrowed to one owner. The fleet is small enough that a single
// read beats cursor bookkeeping.
func (s *PGStore) CarsForRecalc(ctx context.Context, ownerID *uuid.UUID) ([]Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars c ORDER BY c.created_at`
	args := []any{}
	if ownerID != nil {
		query = `SELECT ` + carColumns + ` FROM cars c WHERE c.owner_id = $1 ORDER BY c.created_at`
		args = append(args, *ownerID)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("car: list for recalc: %w", err)
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

// AddPayment records a payment against a car.
func (s *PGStore) AddPayment(ctx context.Context, carID uuid.UUID, amount float64, note string) (Payment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO payments (car_id, amount, note)
		VALUES ($1, $2, $3)
		RETURNING id, car_id, amount, note, created_at`,
		carID, amount, note)
	var p Payment
	if err := row.Scan(&p.ID, &p.CarID, &p.Amount, &p.Note, &p.CreatedAt); err != nil {
		return Payment{}, fmt.Errorf("car: insert payment: %w", err)
	}
	return p, nil
}

// ListPayments returns a car's payments, oldest first.
func (s *PGStore) ListPayments(ctx context.Context, carID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, car_id, amount, note, created_at
		FROM payments
		WHERE car_id = $1
		ORDER BY created_at`, carID)
	if err != nil {
		return nil, fmt.Errorf("car: list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CarID, &p.Amount, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanCar(row pgx.Row) (Car, error) {
	var (
		c        Car
		feesJSON []byte
		totalFee float64
	)
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.VIN,
		&c.Make,
		&c.Model,
		&c.Year,
		&c.Auction,
		&c.AuctionLocation,
		&c.Port,
		&c.BodyType,
		&c.FuelType,
		&c.PurchasePrice,
		&c.Insurance,
		&feesJSON,
		&totalFee,
		&c.TotalPaid,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Car{}, err
	}
	if len(feesJSON) > 0 {
		if err := json.Unmarshal(feesJSON, &c.Fees); err != nil {
			return Car{}, fmt.Errorf("car: decode fees: %w", err)
		}
	}
	if c.Fees.TotalFee == 0 {
		c.Fees.TotalFee = totalFee
	}
	c.TotalDue = c.Fees.TotalFee - c.TotalPaid
	return c, nil
}
