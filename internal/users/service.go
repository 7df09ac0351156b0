package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines profile and address management for authenticated users.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params ProfileParams) (*models.User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (*models.User, error)

	AddAddress(ctx context.Context, userID uuid.UUID, params AddressParams) (*models.Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, params AddressParams) (*models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error
	OwnedAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// ProfileParams carries the mutable profile fields.
type ProfileParams struct {
	FullName string
	Phone    *string
}

// AddressParams carries shipping address fields.
type AddressParams struct {
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

// NewService wires user profile dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, params ProfileParams) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name required")
	}
	user.FullName = fullName
	user.Phone = params.Phone
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

// SetActive flips account access. Deactivated users fail login; existing
// sessions lapse at token expiry.
func (s *service) SetActive(ctx context.Context, userID uuid.UUID, active bool) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}
	user.IsActive = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) AddAddress(ctx context.Context, userID uuid.UUID, params AddressParams) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validateAddressParams(params); err != nil {
		return nil, err
	}

	address := &models.Address{
		UserID:     userID,
		Line1:      strings.TrimSpace(params.Line1),
		Line2:      params.Line2,
		City:       strings.TrimSpace(params.City),
		State:      strings.TrimSpace(params.State),
		PostalCode: strings.TrimSpace(params.PostalCode),
		Country:    normalizeCountry(params.Country),
		IsDefault:  params.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if params.IsDefault {
			if err := repo.ClearDefaultAddress(ctx, userID); err != nil {
				return err
			}
		}
		return repo.CreateAddress(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return address, nil
}

func (s *service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	addresses, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

func (s *service) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, params AddressParams) (*models.Address, error) {
	address, err := s.OwnedAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	if err := validateAddressParams(params); err != nil {
		return nil, err
	}

	address.Line1 = strings.TrimSpace(params.Line1)
	address.Line2 = params.Line2
	address.City = strings.TrimSpace(params.City)
	address.State = strings.TrimSpace(params.State)
	address.PostalCode = strings.TrimSpace(params.PostalCode)
	address.Country = normalizeCountry(params.Country)
	address.IsDefault = params.IsDefault

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if params.IsDefault {
			if err := repo.ClearDefaultAddress(ctx, userID); err != nil {
				return err
			}
		}
		return repo.UpdateAddress(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
	}
	return address, nil
}

func (s *service) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	affected, err := s.repo.DeleteAddress(ctx, userID, addressID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

// OwnedAddress loads an address and enforces ownership. Checkout uses this
// to verify the shipping address before assembling an order.
func (s *service) OwnedAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	address, err := s.repo.FindAddressByID(ctx, addressID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find address")
	}
	if address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	if address.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}
	return address, nil
}

func validateAddressParams(params AddressParams) error {
	if strings.TrimSpace(params.Line1) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address line required")
	}
	if strings.TrimSpace(params.City) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "city required")
	}
	if strings.TrimSpace(params.State) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "state required")
	}
	if strings.TrimSpace(params.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "postal code required")
	}
	return nil
}

func normalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return "MX"
	}
	return country
}
