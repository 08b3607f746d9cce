package pricing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// Store captures the persistence operations the quote path requires. Reads
// are filtered to active rows by the implementation.
type Store interface {
	UserOverride(ctx context.Context, userID uuid.UUID) (*Override, error)
	DefaultOverride(ctx context.Context) (*Override, error)
	ActiveVersion(ctx context.Context) (*SheetVersion, error)
}

// SheetCache keeps the active ground-rate sheet body between quotes.
type SheetCache interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, csvText string) error
	Invalidate(ctx context.Context) error
}

// Service resolves the effective pricing override and the active ground-rate
// sheet, then delegates to the pure engine. Collaborator I/O failures
// propagate to the caller; lookup misses inside the engine never do.
type Service struct {
	Store  Store
	Cache  SheetCache
	Engine Engine
	Logger *zerolog.Logger
}

// Quote prices one car for an optional user. When userID is nil only the
// default override (if active) applies.
func (s *Service) Quote(ctx context.Context, in QuoteInput, userID *uuid.UUID) (Breakdown, error) {
	if s == nil || s.Store == nil {
		return Breakdown{}, errors.New("pricing: service not configured")
	}

	locations, err := s.activeLocations(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	in.Locations = locations

	var userOverride *Override
	if userID != nil {
		userOverride, err = s.Store.UserOverride(ctx, *userID)
		if err != nil {
			return Breakdown{}, err
		}
	}
	defaultOverride, err := s.Store.DefaultOverride(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	in.Override = EffectiveOverride(userOverride, defaultOverride)

	return s.Engine.Quote(in), nil
}

// activeLocations loads the active uploaded sheet, preferring the cache. A nil
// result means no version has been activated and the embedded baseline
// applies. Cache failures degrade to a database read rather than failing the
// quote.
func (s *Service) activeLocations(ctx context.Context) ([]rates.LocationRate, error) {
	if s.Cache != nil {
		csvText, ok, err := s.Cache.Get(ctx)
		if err != nil {
			s.warn(err, "read sheet cache")
		} else if ok {
			return s.parseSheet(csvText), nil
		}
	}

	version, err := s.Store.ActiveVersion(ctx)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, nil
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, version.CSVText); err != nil {
			s.warn(err, "write sheet cache")
		}
	}
	return s.parseSheet(version.CSVText), nil
}

func (s *Service) parseSheet(csvText string) []rates.LocationRate {
	rows, skipped := rates.ParseLocationRates(csvText)
	if skipped > 1 && s.Logger != nil {
		// One skip is the header; more means rows silently missing from
		// lookups, which under-prices cars without any error surfacing.
		s.Logger.Warn().Int("skipped", skipped-1).Msg("active rate sheet contains malformed rows")
	}
	return rows
}

func (s *Service) warn(err error, msg string) {
	if s.Logger != nil {
		s.Logger.Warn().Err(err).Msg(msg)
	}
}
