package car

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/westgate-auto/backend-westgate/internal/pricing"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

type stubQuoter struct {
	breakdown pricing.Breakdown
	err       error
	lastUser  *uuid.UUID
	calls     int
}

func (q *stubQuoter) Quote(_ context.Context, _ pricing.QuoteInput, userID *uuid.UUID) (pricing.Breakdown, error) {
	q.calls++
	q.lastUser = userID
	if q.err != nil {
		return pricing.Breakdown{}, q.err
	}
	return q.breakdown, nil
}

type memStore struct {
	cars      map[uuid.UUID]Car
	payments  map[uuid.UUID][]Payment
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{
		cars:     make(map[uuid.UUID]Car),
		payments: make(map[uuid.UUID][]Payment),
	}
}

func (m *memStore) CreateCar(_ context.Context, c Car) (Car, error) {
	c.ID = uuid.New()
	c.TotalDue = c.Fees.TotalFee
	m.cars[c.ID] = c
	return c, nil
}

func (m *memStore) GetCar(_ context.Context, id uuid.UUID) (Car, error) {
	c, ok := m.cars[id]
	if !ok {
		return Car{}, ErrNotFound
	}
	for _, p := range m.payments[id] {
		c.TotalPaid += p.Amount
	}
	c.TotalDue = c.Fees.TotalFee - c.TotalPaid
	return c, nil
}

func (m *memStore) ListCars(_ context.Context, params ListParams) ([]Car, int, error) {
	var out []Car
	for _, c := range m.cars {
		if params.OwnerID != nil {
			if c.OwnerID == nil || *c.OwnerID != *params.OwnerID {
				continue
			}
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateCar(_ context.Context, c Car) (Car, error) {
	if _, ok := m.cars[c.ID]; !ok {
		return Car{}, ErrNotFound
	}
	m.cars[c.ID] = c
	return m.GetCar(context.Background(), c.ID)
}

func (m *memStore) UpdateCarFees(_ context.Context, id uuid.UUID, fees pricing.Breakdown) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.cars[id]
	if !ok {
		return ErrNotFound
	}
	c.Fees = fees
	m.cars[id] = c
	return nil
}

func (m *memStore) DeleteCar(_ context.Context, id uuid.UUID) error {
	if _, ok := m.cars[id]; !ok {
		return ErrNotFound
	}
	delete(m.cars, id)
	return nil
}

func (m *memStore) CarsForRecalc(_ context.Context, ownerID *uuid.UUID) ([]Car, error) {
	var out []Car
	for _, c := range m.cars {
		if ownerID != nil && (c.OwnerID == nil || *c.OwnerID != *ownerID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) AddPayment(_ context.Context, carID uuid.UUID, amount float64, note string) (Payment, error) {
	p := Payment{ID: uuid.New(), CarID: carID, Amount: amount, Note: note}
	m.payments[carID] = append(m.payments[carID], p)
	return p, nil
}

func (m *memStore) ListPayments(_ context.Context, carID uuid.UUID) ([]Payment, error) {
	return m.payments[carID], nil
}

func testInput(owner *uuid.UUID) Input {
	return Input{
		OwnerID:         owner,
		VIN:             "1FTEW1EP5NKD12345",
		Make:            "Ford",
		Model:           "F-150",
		Year:            2022,
		Auction:         rates.AuctionCopart,
		AuctionLocation: "GA - Savannah",
		Port:            "Savannah, GA",
		PurchasePrice:   5000,
	}
}

func TestServiceCreatePricesCar(t *testing.T) {
	owner := uuid.New()
	quoter := &stubQuoter{breakdown: pricing.Breakdown{TotalFee: 7033}}
	svc := &Service{Store: newMemStore(), Pricing: quoter}

	created, err := svc.Create(context.Background(), testInput(&owner))
	require.NoError(t, err)
	require.Equal(t, 7033.0, created.Fees.TotalFee)
	require.Equal(t, 7033.0, created.TotalDue)
	require.NotNil(t, quoter.lastUser)
	require.Equal(t, owner, *quoter.lastUser)
}

func TestServiceCreatePropagatesQuoteFailure(t *testing.T) {
	quoteErr := errors.New("store down")
	svc := &Service{Store: newMemStore(), Pricing: &stubQuoter{err: quoteErr}}

	_, err := svc.Create(context.Background(), testInput(nil))
	require.ErrorIs(t, err, quoteErr)
}

func TestServiceUpdateReprices(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	quoter := &stubQuoter{breakdown: pricing.Breakdown{TotalFee: 7033}}
	svc := &Service{Store: store, Pricing: quoter}

	created, err := svc.Create(context.Background(), testInput(&owner))
	require.NoError(t, err)

	quoter.breakdown = pricing.Breakdown{TotalFee: 8000}
	in := testInput(nil)
	in.PurchasePrice = 6000
	updated, err := svc.Update(context.Background(), created.ID, in)
	require.NoError(t, err)
	require.Equal(t, 8000.0, updated.Fees.TotalFee)
	require.NotNil(t, updated.OwnerID)
	require.Equal(t, owner, *updated.OwnerID)
}

func TestServiceUpdateUnknownCar(t *testing.T) {
	svc := &Service{Store: newMemStore(), Pricing: &stubQuoter{}}
	_, err := svc.Update(context.Background(), uuid.New(), testInput(nil))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRecordPaymentReducesDues(t *testing.T) {
	store := newMemStore()
	svc := &Service{Store: store, Pricing: &stubQuoter{breakdown: pricing.Breakdown{TotalFee: 7033}}}

	created, err := svc.Create(context.Background(), testInput(nil))
	require.NoError(t, err)

	c, err := svc.RecordPayment(context.Background(), created.ID, 3000, "wire transfer")
	require.NoError(t, err)
	require.Equal(t, 3000.0, c.TotalPaid)
	require.Equal(t, 4033.0, c.TotalDue)

	c, err = svc.RecordPayment(context.Background(), created.ID, 4033, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, c.TotalDue)
}

func TestServiceRecordPaymentRejectsNonPositive(t *testing.T) {
	svc := &Service{Store: newMemStore(), Pricing: &stubQuoter{}}
	_, err := svc.RecordPayment(context.Background(), uuid.New(), 0, "")
	require.Error(t, err)
}
