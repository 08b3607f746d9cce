package car

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/westgate-auto/backend-westgate/internal/pricing"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// Quoter prices one car for an optional owner. Satisfied by pricing.Service.
type Quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput, userID *uuid.UUID) (pricing.Breakdown, error)
}

// Store captures the persistence the car service requires.
type Store interface {
	CreateCar(ctx context.Context, c Car) (Car, error)
	GetCar(ctx context.Context, id uuid.UUID) (Car, error)
	ListCars(ctx context.Context, params ListParams) ([]Car, int, error)
	UpdateCar(ctx context.Context, c Car) (Car, error)
	DeleteCar(ctx context.Context, id uuid.UUID) error
	AddPayment(ctx context.Context, carID uuid.UUID, amount float64, note string) (Payment, error)
	ListPayments(ctx context.Context, carID uuid.UUID) ([]Payment, error)
}

// Input carries the caller-supplied fields for creating or updating a car.
type Input struct {
	OwnerID         *uuid.UUID
	VIN             string
	Make            string
	Model           string
	Year            int
	Auction         rates.Auction
	AuctionLocation string
	Port            string
	BodyType        string
	FuelType        string
	PurchasePrice   float64
	Insurance       bool
}

// Service manages the car inventory. Every write that touches a
// pricing-relevant field reprices the car so stored fees never drift from the
// stored inputs.
type Service struct {
	Store   Store
	Pricing Quoter
	Logger  *zerolog.Logger
}

// Create prices and persists a new car.
func (s *Service) Create(ctx context.Context, in Input) (Car, error) {
	c := carFromInput(in)
	fees, err := s.Pricing.Quote(ctx, c.quoteInput(), c.OwnerID)
	if err != nil {
		return Car{}, fmt.Errorf("car: price on create: %w", err)
	}
	c.Fees = fees
	return s.Store.CreateCar(ctx, c)
}

// Get loads one car.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Car, error) {
	return s.Store.GetCar(ctx, id)
}

// List pages cars, optionally scoped to one owner.
func (s *Service) List(ctx context.Context, params ListParams) ([]Car, int, error) {
	return s.Store.ListCars(ctx, params)
}

// Update rewrites a car's fields and reprices it against current tables and
// overrides. Ownership is preserved from the stored row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Car, error) {
	existing, err := s.Store.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}

	c := carFromInput(in)
	c.ID = existing.ID
	c.OwnerID = existing.OwnerID

	fees, err := s.Pricing.Quote(ctx, c.quoteInput(), c.OwnerID)
	if err != nil {
		return Car{}, fmt.Errorf("car: price on update: %w", err)
	}
	c.Fees = fees
	return s.Store.UpdateCar(ctx, c)
}

// Delete removes a car and its payment history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.Store.DeleteCar(ctx, id)
}

// RecordPayment adds a payment and returns the car with refreshed dues.
func (s *Service) RecordPayment(ctx context.Context, carID uuid.UUID, amount float64, note string) (Car, error) {
	if amount <= 0 {
		return Car{}, errors.New("car: payment amount must be positive")
	}
	if _, err := s.Store.GetCar(ctx, carID); err != nil {
		return Car{}, err
	}
	if _, err := s.Store.AddPayment(ctx, carID, amount, note); err != nil {
		return Car{}, err
	}
	return s.Store.GetCar(ctx, carID)
}

// Payments lists a car's payment history.
func (s *Service) Payments(ctx context.Context, carID uuid.UUID) ([]Payment, error) {
	if _, err := s.Store.GetCar(ctx, carID); err != nil {
		return nil, err
	}
	return s.Store.ListPayments(ctx, carID)
}

func carFromInput(in Input) Car {
	return Car{
		OwnerID:         in.OwnerID,
		VIN:             in.VIN,
		Make:            in.Make,
		Model:           in.Model,
		Year:            in.Year,
		Auction:         in.Auction,
		AuctionLocation: in.AuctionLocation,
		Port:            in.Port,
		BodyType:        in.BodyType,
		FuelType:        in.FuelType,
		PurchasePrice:   in.PurchasePrice,
		Insurance:       in.Insurance,
	}
}
