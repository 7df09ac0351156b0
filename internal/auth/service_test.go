package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/juan12312121/mercado-backend/pkg/auth"
	"github.com/juan12312121/mercado-backend/pkg/config"
	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
	pkgerrors "github.com/juan12312121/mercado-backend/pkg/errors"
	"github.com/juan12312121/mercado-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mercado-backend",
		ExpirationMinutes: 60,
	}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, users *stubUserRepo, sellers *stubSellerLookup) (Service, *stubSessionManager) {
	t.Helper()
	if sellers == nil {
		sellers = &stubSellerLookup{}
	}
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       users,
		SellerRepo:     sellers,
		SessionManager: sessionMgr,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessionMgr
}

func TestServiceRegisterCreatesBuyer(t *testing.T) {
	users := &stubUserRepo{}
	svc, _ := buildTestService(t, users, nil)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Buyer@Example.COM ",
		Password: "super-secret",
		FullName: " Ana Torres ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if users.created == nil {
		t.Fatalf("expected user to be persisted")
	}
	if users.created.Email != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %q", users.created.Email)
	}
	if users.created.Role != enums.RoleBuyer {
		t.Fatalf("expected buyer role, got %s", users.created.Role)
	}
	if users.created.PasswordHash == "super-secret" {
		t.Fatalf("password stored in plain text")
	}
	if resp.User == nil || resp.User.FullName != "Ana Torres" {
		t.Fatalf("expected trimmed full name in response, got %+v", resp.User)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", resp.TokenPair)
	}
}

func TestServiceRegisterDuplicateEmail(t *testing.T) {
	users := &stubUserRepo{createErr: uniqueViolation{}}
	svc, _ := buildTestService(t, users, nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "taken@example.com",
		Password: "super-secret",
		FullName: "Ana Torres",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestServiceRegisterShortPassword(t *testing.T) {
	svc, _ := buildTestService(t, &stubUserRepo{}, nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "buyer@example.com",
		Password: "short",
		FullName: "Ana Torres",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceLoginIssuesClaims(t *testing.T) {
	password := "buyer-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "buyer@example.com",
		PasswordHash: mustHashPassword(t, password),
		FullName:     "Ana Torres",
		Role:         enums.RoleBuyer,
		IsActive:     true,
	}
	users := &stubUserRepo{user: user}
	svc, _ := buildTestService(t, users, nil)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    " Buyer@Example.com ",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id claim %s, got %s", user.ID, claims.UserID)
	}
	if claims.Role != enums.RoleBuyer {
		t.Fatalf("expected buyer role claim, got %s", claims.Role)
	}
	if claims.SellerID != nil {
		t.Fatalf("expected no seller claim for buyer, got %s", claims.SellerID)
	}
	if users.lastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("expected refresh token to be set")
	}
}

func TestServiceLoginApprovedSellerGetsSellerClaim(t *testing.T) {
	password := "seller-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "seller@example.com",
		PasswordHash: mustHashPassword(t, password),
		FullName:     "Luis Rocha",
		Role:         enums.RoleSeller,
		IsActive:     true,
	}
	seller := &models.Seller{
		ID:     uuid.New(),
		UserID: user.ID,
		Status: enums.SellerStatusApproved,
	}
	svc, _ := buildTestService(t, &stubUserRepo{user: user}, &stubSellerLookup{seller: seller})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.SellerID == nil || *claims.SellerID != seller.ID {
		t.Fatalf("expected seller claim %s, got %v", seller.ID, claims.SellerID)
	}
}

func TestServiceLoginSuspendedSellerOmitsSellerClaim(t *testing.T) {
	password := "seller-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "seller@example.com",
		PasswordHash: mustHashPassword(t, password),
		FullName:     "Luis Rocha",
		Role:         enums.RoleSeller,
		IsActive:     true,
	}
	seller := &models.Seller{
		ID:     uuid.New(),
		UserID: user.ID,
		Status: enums.SellerStatusSuspended,
	}
	svc, _ := buildTestService(t, &stubUserRepo{user: user}, &stubSellerLookup{seller: seller})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.SellerID != nil {
		t.Fatalf("expected no seller claim while suspended, got %s", claims.SellerID)
	}
}

func TestServiceLoginRejectsWrongPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "buyer@example.com",
		PasswordHash: mustHashPassword(t, "right-password"),
		FullName:     "Ana Torres",
		Role:         enums.RoleBuyer,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, &stubUserRepo{user: user}, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong-password"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	password := "buyer-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "buyer@example.com",
		PasswordHash: mustHashPassword(t, password),
		FullName:     "Ana Torres",
		Role:         enums.RoleBuyer,
		IsActive:     false,
	}
	svc, _ := buildTestService(t, &stubUserRepo{user: user}, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive account, got %v", err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	oldAccessID := uuid.NewString()
	accessToken, err := pkgauth.MintAccessToken(cfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.RoleBuyer,
		JTI:    oldAccessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc, sessionMgr := buildTestService(t, &stubUserRepo{}, nil)

	pair, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "refresh-token",
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if sessionMgr.rotatedFrom != oldAccessID {
		t.Fatalf("expected rotation from %s, got %s", oldAccessID, sessionMgr.rotatedFrom)
	}
	if pair.RefreshToken != "rotated-refresh-token" {
		t.Fatalf("expected rotated refresh token, got %q", pair.RefreshToken)
	}

	claims, err := pkgauth.ParseAccessToken(cfg, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.ID == oldAccessID {
		t.Fatalf("expected a new access id after rotation")
	}
}

func TestServiceRefreshRejectsInvalidSession(t *testing.T) {
	cfg := testJWTConfig()
	accessToken, err := pkgauth.MintAccessToken(cfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleBuyer,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	users := &stubUserRepo{}
	sellers := &stubSellerLookup{}
	sessionMgr := &stubSessionManager{rotateErr: errStub("session not found")}
	svc, err := NewService(ServiceParams{
		UserRepo:       users,
		SellerRepo:     sellers,
		SessionManager: sessionMgr,
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "stale-token",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	svc, sessionMgr := buildTestService(t, &stubUserRepo{}, nil)

	accessID := uuid.NewString()
	if err := svc.Logout(context.Background(), accessID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sessionMgr.revoked != accessID {
		t.Fatalf("expected session %s revoked, got %s", accessID, sessionMgr.revoked)
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }

// uniqueViolation mimics the driver error db.IsUniqueViolation detects.
type uniqueViolation struct{}

func (uniqueViolation) Error() string { return "duplicate key value violates unique constraint" }

type stubUserRepo struct {
	user      *models.User
	created   *models.User
	createErr error
	lastLogin *time.Time
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uuid.New()
	s.created = user
	return nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user != nil && s.user.Email == email {
		return s.user, nil
	}
	return nil, nil
}

func (s *stubUserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin = &at
	return nil
}

type stubSellerLookup struct {
	seller *models.Seller
	err    error
}

func (s *stubSellerLookup) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.seller != nil && s.seller.UserID == userID {
		return s.seller, nil
	}
	return nil, nil
}

type stubSessionManager struct {
	refreshToken string
	rotatedFrom  string
	rotateErr    error
	revoked      string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	s.rotatedFrom = oldAccessID
	return uuid.NewString(), "rotated-refresh-token", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}
