package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"einvoice/internal/model"
	"einvoice/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterRequest struct {
	BusinessName string `json:"business_name" binding:"required"`
	NTNCNIC      string `json:"ntn_cnic" binding:"required"`
	Province     string `json:"province" binding:"required"`
	Address      string `json:"address"`
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	Password     string `json:"password" binding:"required,min=6"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// TokenIssuer signs access tokens; implemented by middleware.Authenticator.
type TokenIssuer interface {
	IssueAccessToken(userID uuid.UUID, role string, orgID *uuid.UUID) (string, error)
}

// --- Interface ---

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, actor Actor) (*MeResponse, error)
}

type MeResponse struct {
	UserResponse
	Organization *OrganizationResponse `json:"organization"`
}

type authService struct {
	userRepo   repository.UserRepository
	orgRepo    repository.OrganizationRepository
	txManager  repository.TransactionManager
	issuer     TokenIssuer
	refreshTTL time.Duration
	audit      auditor
	now        func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	issuer TokenIssuer,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		orgRepo:    orgRepo,
		txManager:  txManager,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		audit:      auditor{repo: auditRepo},
		now:        time.Now,
	}
}

// --- Implementation ---

// Register creates the seller organization together with its first admin.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.NTNCNIC = strings.TrimSpace(req.NTNCNIC)

	if !validEmail(req.Email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidRequest)
	}
	if _, err := s.orgRepo.FindByNTNCNIC(ctx, req.NTNCNIC); err == nil {
		return nil, fmt.Errorf("organization with this NTN/CNIC %w", ErrConflict)
	}
	if err := s.ensureUnique(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	org := &model.Organization{
		BusinessName: strings.TrimSpace(req.BusinessName),
		NTNCNIC:      req.NTNCNIC,
		Province:     strings.TrimSpace(req.Province),
		Address:      strings.TrimSpace(req.Address),
	}
	user := &model.User{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Role:     model.RoleAdmin,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orgRepo.Create(txCtx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		user.OrganizationID = &org.ID
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		actor := Actor{UserID: user.ID, OrganizationID: &org.ID, Role: user.Role}
		return s.audit.write(txCtx, actor, model.ActionRegisterOrganization, org.ID.String(), org.BusinessName, map[string]interface{}{
			"ntn_cnic": org.NTNCNIC,
			"username": user.Username,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates the refresh token: the presented one is consumed.
func (s *authService) Refresh(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.userRepo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	if err := s.userRepo.DeleteRefreshToken(ctx, stored.Token); err != nil {
		return nil, err
	}
	if !s.now().Before(stored.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.userRepo.DeleteRefreshToken(ctx, refreshToken)
}

func (s *authService) Me(ctx context.Context, actor Actor) (*MeResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, err
	}

	me := &MeResponse{UserResponse: toUserResponse(user)}
	if user.OrganizationID != nil {
		org, err := s.orgRepo.FindByID(ctx, *user.OrganizationID)
		if err == nil {
			res := toOrganizationResponse(org)
			me.Organization = &res
		}
	}
	return me, nil
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	access, err := s.issuer.IssueAccessToken(user.ID, user.Role, user.OrganizationID)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	now := s.now()
	_ = s.userRepo.DeleteExpiredRefreshTokens(ctx, user.ID, now)
	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.userRepo.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: access, RefreshToken: refresh.Token, User: toUserResponse(user)}, nil
}

func (s *authService) ensureUnique(ctx context.Context, username, email string) error {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("username %w", ErrConflict)
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("email %w", ErrConflict)
	}
	return nil
}
