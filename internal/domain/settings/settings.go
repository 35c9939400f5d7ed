// Package settings holds the business identity printed on receipts and the
// tax rate. There is at most one Settings document.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by repositories when settings were never saved.
	ErrNotFound = errors.New("settings not found")
	// ErrInvalidSettings is returned when input fails validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// DefaultTaxRate is used until the operator saves settings.
var DefaultTaxRate = decimal.NewFromInt(18)

// Settings is the singleton business configuration document.
type Settings struct {
	BusinessName string          `json:"businessName"`
	TaxNumber    string          `json:"taxNumber"`
	Address      string          `json:"address"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Repository stores the singleton settings document.
type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Upsert(ctx context.Context, s *Settings) error
}

// Input holds operator-entered settings.
type Input struct {
	BusinessName string          `validate:"max=200"`
	TaxNumber    string          `validate:"max=50"`
	Address      string          `validate:"max=500"`
	TaxRate      decimal.Decimal `validate:"-"`
}

// Service reads and saves settings.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a settings Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), now: time.Now}
}

// Get returns the stored settings, or defaults when none were saved.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Settings{TaxRate: DefaultTaxRate}, nil
		}
		return nil, errors.Wrap(err, "get settings")
	}
	return st, nil
}

// Save replaces the settings document.
func (s *Service) Save(ctx context.Context, in Input) (*Settings, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSettings, err.Error())
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidSettings)
	}
	st := &Settings{
		BusinessName: strings.TrimSpace(in.BusinessName),
		TaxNumber:    strings.TrimSpace(in.TaxNumber),
		Address:      strings.TrimSpace(in.Address),
		TaxRate:      in.TaxRate,
		UpdatedAt:    s.now(),
	}
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, errors.Wrap(err, "save settings")
	}
	return st, nil
}
