package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/westgate-auto/backend-westgate/internal/rates"
)

type stubStore struct {
	userOverrides map[uuid.UUID]*Override
	defOverride   *Override
	version       *SheetVersion
	err           error
}

func (s *stubStore) UserOverride(_ context.Context, userID uuid.UUID) (*Override, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.userOverrides[userID], nil
}

func (s *stubStore) DefaultOverride(context.Context) (*Override, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.defOverride, nil
}

func (s *stubStore) ActiveVersion(context.Context) (*SheetVersion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.version, nil
}

func newTestService(t *testing.T, store *stubStore) *Service {
	t.Helper()
	tables, err := rates.Default()
	require.NoError(t, err)
	return &Service{Store: store, Engine: NewEngine(tables, rates.ScheduleStyleA)}
}

func savannahInput() QuoteInput {
	return QuoteInput{
		Auction:         rates.AuctionCopart,
		AuctionLocation: "GA - Savannah",
		Port:            "Savannah, GA",
		PurchasePrice:   5000,
	}
}

func TestServiceQuoteBaseline(t *testing.T) {
	svc := newTestService(t, &stubStore{})

	got, err := svc.Quote(context.Background(), savannahInput(), nil)
	require.NoError(t, err)
	require.Equal(t, 7033.0, got.TotalFee)
}

func TestServiceQuoteUserBeatsDefault(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{
		userOverrides: map[uuid.UUID]*Override{
			userID: {GroundFeeDelta: 50, Active: true},
		},
		defOverride: &Override{GroundFeeDelta: 999, Active: true},
	}
	svc := newTestService(t, store)

	got, err := svc.Quote(context.Background(), savannahInput(), &userID)
	require.NoError(t, err)
	require.Equal(t, 190.0, got.GroundFee)
}

func TestServiceQuoteFallsBackToDefaultOverride(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{defOverride: &Override{GroundFeeDelta: 25, Active: true}}
	svc := newTestService(t, store)

	got, err := svc.Quote(context.Background(), savannahInput(), &userID)
	require.NoError(t, err)
	require.Equal(t, 165.0, got.GroundFee)
}

func TestServiceQuoteOceanOverrideReplaces(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{
		userOverrides: map[uuid.UUID]*Override{
			userID: {
				OceanRates: []rates.OceanRate{{Shorthand: "Savannah, GA", Rate: 2000}},
				Active:     true,
			},
		},
	}
	svc := newTestService(t, store)

	got, err := svc.Quote(context.Background(), savannahInput(), &userID)
	require.NoError(t, err)
	require.Equal(t, 2000.0, got.OceanFee)
}

func TestServiceQuoteUsesActiveSheetVersion(t *testing.T) {
	sheet := "Auction,Auction Name,Location,Zip,Port,Rate\n" +
		"Copart,GA - Savannah,Savannah,31405,\"Savannah, GA\",$180\n"
	store := &stubStore{version: &SheetVersion{CSVText: sheet}}
	svc := newTestService(t, store)

	got, err := svc.Quote(context.Background(), savannahInput(), nil)
	require.NoError(t, err)
	require.Equal(t, 180.0, got.GroundFee)
}

func TestServiceQuotePropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := newTestService(t, &stubStore{err: storeErr})

	_, err := svc.Quote(context.Background(), savannahInput(), nil)
	require.ErrorIs(t, err, storeErr)
}
