package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"flagstore/internal/dto/resp"
	"flagstore/internal/metrics"
	"flagstore/internal/model"
	"flagstore/internal/repository"
	"flagstore/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidFlagName = errors.New("invalid flag name")
var ErrFlagExists = errors.New("flag already exists")
var ErrStoreUnavailable = errors.New("flag store unavailable")
var ErrDatabaseUnhealthy = errors.New("database unhealthy")

const maxFlagNameLen = 255

type FlagService struct {
	db       *gorm.DB
	flagRepo repository.FlagInterface
	observer metrics.StoreObserver
}

func NewFlagService(db *gorm.DB, flagRepo repository.FlagInterface, observer metrics.StoreObserver) *FlagService {
	if observer == nil {
		observer = metrics.NewNoopObserver()
	}
	return &FlagService{
		db:       db,
		flagRepo: flagRepo,
		observer: observer,
	}
}

// ValidateFlagName rejects malformed names before anything reaches the table.
// Names are case-sensitive; they must be non-empty, at most 255 bytes, and
// free of surrounding whitespace and control characters.
func ValidateFlagName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidFlagName)
	}
	if len(name) > maxFlagNameLen {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidFlagName, maxFlagNameLen)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: name has surrounding whitespace", ErrInvalidFlagName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains control characters", ErrInvalidFlagName)
		}
	}
	return nil
}

// Get returns the current row, or (nil, nil) when the flag was never set.
// Absence is not the same thing as value=false.
func (s *FlagService) Get(ctx context.Context, name string) (*resp.FlagItem, error) {
	if err := ValidateFlagName(name); err != nil {
		return nil, err
	}

	m, err := s.flagRepo.GetByName(ctx, name)
	if err != nil {
		return nil, storeErr(err)
	}
	if m == nil {
		return nil, nil
	}

	s.observer.RecordRead()
	return toFlagItem(m), nil
}

// Set creates the row if absent or updates value in place, refreshing
// updated_at either way. The read and the upsert share one transaction so two
// concurrent sets on the same name serialize on the row lock.
func (s *FlagService) Set(ctx context.Context, name string, value bool) (*resp.FlagItem, error) {
	if err := ValidateFlagName(name); err != nil {
		return nil, err
	}

	var saved model.ConfigFlag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txFlag := s.flagRepo.WithTx(tx)

		current, err := txFlag.GetByName(ctx, name)
		if err != nil {
			logger.Error("failed to read flag before write", zap.String("flag", name), zap.Error(err))
			return err
		}

		ts := time.Now().UTC()
		// updated_at never moves backwards for a given name, even if the
		// local clock does
		if current != nil && current.UpdatedAt.After(ts) {
			ts = current.UpdatedAt
		}

		saved = model.ConfigFlag{FlagName: name, Value: value, UpdatedAt: ts}
		return txFlag.Upsert(ctx, &saved)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.observer.RecordWrite()
	return toFlagItem(&saved), nil
}

// Create is the non-upserting path. The public contract is Set; this exists
// for callers that need creation to fail on an existing name.
func (s *FlagService) Create(ctx context.Context, name string, value bool) (*resp.FlagItem, error) {
	if err := ValidateFlagName(name); err != nil {
		return nil, err
	}

	flag := model.ConfigFlag{FlagName: name, Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.flagRepo.Create(ctx, &flag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrFlagExists, name)
		}
		return nil, storeErr(err)
	}

	s.observer.RecordWrite()
	return toFlagItem(&flag), nil
}

// List returns every flag ordered by name so callers get a reproducible
// listing for display or diffing.
func (s *FlagService) List(ctx context.Context) ([]resp.FlagItem, error) {
	flags, err := s.flagRepo.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	items := make([]resp.FlagItem, 0, len(flags))
	for _, m := range flags {
		items = append(items, *toFlagItem(m))
	}

	s.observer.RecordRead()
	return items, nil
}

// Delete removes the flag and reports whether a row was actually removed.
// Deleting an absent flag is not an error.
func (s *FlagService) Delete(ctx context.Context, name string) (bool, error) {
	if err := ValidateFlagName(name); err != nil {
		return false, err
	}

	deleted, err := s.flagRepo.Delete(ctx, name)
	if err != nil {
		return false, storeErr(err)
	}

	if deleted {
		s.observer.RecordDelete()
	}
	return deleted, nil
}

func (s *FlagService) Health(ctx context.Context) error {
	if s.flagRepo.PingContext(ctx) != nil {
		return ErrDatabaseUnhealthy
	}
	return nil
}

func toFlagItem(m *model.ConfigFlag) *resp.FlagItem {
	return &resp.FlagItem{
		FlagName:  m.FlagName,
		Value:     m.Value,
		UpdatedAt: m.UpdatedAt,
	}
}

// storeErr marks a storage failure as connectivity trouble while keeping the
// driver error reachable through errors.Is/As. The store never retries;
// retry policy belongs to the caller.
func storeErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
