package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	users           map[uuid.UUID]*models.User
	addresses       map[uuid.UUID]*models.Address
	defaultsCleared bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:     map[uuid.UUID]*models.User{},
		addresses: map[uuid.UUID]*models.Address{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepository) SetRole(ctx context.Context, id uuid.UUID, role enums.Role) error {
	if user, ok := f.users[id]; ok {
		user.Role = role
	}
	return nil
}

func (f *fakeRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeRepository) CreateAddress(ctx context.Context, address *models.Address) error {
	if address.ID == uuid.Nil {
		address.ID = uuid.New()
	}
	f.addresses[address.ID] = address
	return nil
}

func (f *fakeRepository) FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	return f.addresses[id], nil
}

func (f *fakeRepository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	for _, address := range f.addresses {
		if address.UserID == userID {
			out = append(out, *address)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateAddress(ctx context.Context, address *models.Address) error {
	f.addresses[address.ID] = address
	return nil
}

func (f *fakeRepository) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) (int64, error) {
	address, ok := f.addresses[addressID]
	if !ok || address.UserID != userID {
		return 0, nil
	}
	delete(f.addresses, addressID)
	return 1, nil
}

func (f *fakeRepository) ClearDefaultAddress(ctx context.Context, userID uuid.UUID) error {
	f.defaultsCleared = true
	for _, address := range f.addresses {
		if address.UserID == userID {
			address.IsDefault = false
		}
	}
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_UpdateProfile(t *testing.T) {
	repo := newFakeRepository()
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", FullName: "Old Name"}
	repo.users[user.ID] = user

	svc := newTestService(t, repo)
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileParams{FullName: "  New Name  "})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.FullName != "New Name" {
		t.Fatalf("expected trimmed name, got %q", updated.FullName)
	}
}

func TestService_UpdateProfileUnknownUser(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	_, err := svc.UpdateProfile(context.Background(), uuid.New(), ProfileParams{FullName: "Name"})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_AddDefaultAddressClearsPrevious(t *testing.T) {
	repo := newFakeRepository()
	userID := uuid.New()
	previous := &models.Address{ID: uuid.New(), UserID: userID, Line1: "Old 1", City: "CDMX", State: "DF", PostalCode: "01000", Country: "MX", IsDefault: true}
	repo.addresses[previous.ID] = previous

	svc := newTestService(t, repo)
	added, err := svc.AddAddress(context.Background(), userID, AddressParams{
		Line1:      "Av. Reforma 100",
		City:       "CDMX",
		State:      "DF",
		PostalCode: "06600",
		IsDefault:  true,
	})
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if !repo.defaultsCleared {
		t.Fatal("expected previous default cleared")
	}
	if !added.IsDefault {
		t.Fatal("expected new address to be default")
	}
	if added.Country != "MX" {
		t.Fatalf("expected MX default country, got %q", added.Country)
	}
}

func TestService_AddAddressValidation(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	_, err := svc.AddAddress(context.Background(), uuid.New(), AddressParams{Line1: " ", City: "CDMX", State: "DF", PostalCode: "06600"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_OwnedAddress(t *testing.T) {
	repo := newFakeRepository()
	owner := uuid.New()
	address := &models.Address{ID: uuid.New(), UserID: owner, Line1: "Calle 1", City: "CDMX", State: "DF", PostalCode: "01000", Country: "MX"}
	repo.addresses[address.ID] = address
	svc := newTestService(t, repo)

	if _, err := svc.OwnedAddress(context.Background(), owner, address.ID); err != nil {
		t.Fatalf("unexpected owned address error: %v", err)
	}

	_, err := svc.OwnedAddress(context.Background(), uuid.New(), address.ID)
	if err == nil {
		t.Fatal("expected forbidden error for non owner")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestService_SetActiveFlipsFlag(t *testing.T) {
	repo := newFakeRepository()
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", FullName: "Buyer", IsActive: true}
	repo.users[user.ID] = user

	svc := newTestService(t, repo)
	updated, err := svc.SetActive(context.Background(), user.ID, false)
	if err != nil {
		t.Fatalf("unexpected deactivate error: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected user to be deactivated")
	}

	updated, err = svc.SetActive(context.Background(), user.ID, false)
	if err != nil {
		t.Fatalf("unexpected repeat error: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected repeated deactivate to stay inactive")
	}
}

func TestService_SetActiveUnknownUser(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	_, err := svc.SetActive(context.Background(), uuid.New(), true)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_DeleteAddressNotFound(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	err := svc.DeleteAddress(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}
