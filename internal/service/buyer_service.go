package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"einvoice/internal/cache"
	"einvoice/internal/logger"
	"einvoice/internal/model"
	"einvoice/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type BuyerRequest struct {
	NTNCNIC          string `json:"ntn_cnic" binding:"required"`
	BusinessName     string `json:"business_name" binding:"required"`
	Province         string `json:"province"`
	Address          string `json:"address"`
	RegistrationType string `json:"registration_type" binding:"omitempty,oneof=Registered Unregistered"`
}

type BuyerResponse struct {
	ID               string  `json:"id"`
	NTNCNIC          string  `json:"ntn_cnic"`
	BusinessName     string  `json:"business_name"`
	Province         string  `json:"province"`
	Address          string  `json:"address"`
	RegistrationType string  `json:"registration_type"`
	StatusCheckedAt  *string `json:"status_checked_at"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type RegistrationStatusResponse struct {
	NTNCNIC          string `json:"ntn_cnic"`
	RegistrationType string `json:"registration_type"`
	Cached           bool   `json:"cached"`
	CheckedAt        string `json:"checked_at"`
}

// --- Interface ---

type BuyerService interface {
	CreateBuyer(ctx context.Context, actor Actor, req BuyerRequest) (BuyerResponse, error)
	GetBuyer(ctx context.Context, actor Actor, id uuid.UUID) (BuyerResponse, error)
	ListBuyers(ctx context.Context, actor Actor, search string, page, limit int) ([]BuyerResponse, int64, error)
	UpdateBuyer(ctx context.Context, actor Actor, id uuid.UUID, req BuyerRequest) (BuyerResponse, error)
	DeleteBuyer(ctx context.Context, actor Actor, id uuid.UUID) error
	RefreshStatus(ctx context.Context, actor Actor, id uuid.UUID) (BuyerResponse, error)
	CheckRegistration(ctx context.Context, actor Actor, ntnCnic string) (RegistrationStatusResponse, error)
}

type buyerService struct {
	repo     repository.BuyerRepository
	orgRepo  repository.OrganizationRepository
	fbr      FBRClient
	cache    cache.Store
	cacheTTL time.Duration
	audit    auditor
	now      func() time.Time
}

func NewBuyerService(
	repo repository.BuyerRepository,
	orgRepo repository.OrganizationRepository,
	auditRepo repository.AuditRepository,
	fbrClient FBRClient,
	store cache.Store,
	cacheTTL time.Duration,
) BuyerService {
	if store == nil {
		store = cache.NewMemory()
	}
	if cacheTTL <= 0 {
		cacheTTL = 12 * time.Hour
	}
	return &buyerService{
		repo:     repo,
		orgRepo:  orgRepo,
		fbr:      fbrClient,
		cache:    store,
		cacheTTL: cacheTTL,
		audit:    auditor{repo: auditRepo},
		now:      time.Now,
	}
}

func toBuyerResponse(b *model.Buyer) BuyerResponse {
	return BuyerResponse{
		ID:               b.ID.String(),
		NTNCNIC:          b.NTNCNIC,
		BusinessName:     b.BusinessName,
		Province:         b.Province,
		Address:          b.Address,
		RegistrationType: b.RegistrationType,
		StatusCheckedAt:  formatTime(b.StatusCheckedAt),
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        b.UpdatedAt.Format(time.RFC3339),
	}
}

// --- Implementation ---

func (s *buyerService) CreateBuyer(ctx context.Context, actor Actor, req BuyerRequest) (BuyerResponse, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return BuyerResponse{}, err
	}
	ntn := strings.TrimSpace(req.NTNCNIC)
	if _, err := s.repo.FindByNTNCNIC(ctx, orgID, ntn); err == nil {
		return BuyerResponse{}, fmt.Errorf("buyer with NTN/CNIC %s %w", ntn, ErrConflict)
	}

	buyer := &model.Buyer{
		OrganizationID:   orgID,
		NTNCNIC:          ntn,
		BusinessName:     strings.TrimSpace(req.BusinessName),
		Province:         strings.TrimSpace(req.Province),
		Address:          strings.TrimSpace(req.Address),
		RegistrationType: req.RegistrationType,
	}
	if err := s.repo.Create(ctx, buyer); err != nil {
		return BuyerResponse{}, fmt.Errorf("failed to create buyer: %w", err)
	}

	s.audit.record(ctx, actor, model.ActionCreateBuyer, buyer.ID.String(), buyer.BusinessName, map[string]interface{}{
		"ntn_cnic": buyer.NTNCNIC,
	})
	return toBuyerResponse(buyer), nil
}

func (s *buyerService) find(ctx context.Context, actor Actor, id uuid.UUID) (*model.Buyer, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, err
	}
	buyer, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("buyer %w", ErrNotFound)
		}
		return nil, err
	}
	return buyer, nil
}

func (s *buyerService) GetBuyer(ctx context.Context, actor Actor, id uuid.UUID) (BuyerResponse, error) {
	buyer, err := s.find(ctx, actor, id)
	if err != nil {
		return BuyerResponse{}, err
	}
	return toBuyerResponse(buyer), nil
}

func (s *buyerService) ListBuyers(ctx context.Context, actor Actor, search string, page, limit int) ([]BuyerResponse, int64, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	buyers, total, err := s.repo.List(ctx, orgID, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]BuyerResponse, 0, len(buyers))
	for i := range buyers {
		res = append(res, toBuyerResponse(&buyers[i]))
	}
	return res, total, nil
}

func (s *buyerService) UpdateBuyer(ctx context.Context, actor Actor, id uuid.UUID, req BuyerRequest) (BuyerResponse, error) {
	buyer, err := s.find(ctx, actor, id)
	if err != nil {
		return BuyerResponse{}, err
	}

	ntn := strings.TrimSpace(req.NTNCNIC)
	if ntn != buyer.NTNCNIC {
		if _, err := s.repo.FindByNTNCNIC(ctx, buyer.OrganizationID, ntn); err == nil {
			return BuyerResponse{}, fmt.Errorf("buyer with NTN/CNIC %s %w", ntn, ErrConflict)
		}
		buyer.NTNCNIC = ntn
		buyer.StatusCheckedAt = nil
	}
	buyer.BusinessName = strings.TrimSpace(req.BusinessName)
	buyer.Province = strings.TrimSpace(req.Province)
	buyer.Address = strings.TrimSpace(req.Address)
	if req.RegistrationType != "" {
		buyer.RegistrationType = req.RegistrationType
	}

	if err := s.repo.Update(ctx, buyer); err != nil {
		return BuyerResponse{}, fmt.Errorf("failed to update buyer: %w", err)
	}
	s.audit.record(ctx, actor, model.ActionUpdateBuyer, buyer.ID.String(), buyer.BusinessName, nil)
	return toBuyerResponse(buyer), nil
}

func (s *buyerService) DeleteBuyer(ctx context.Context, actor Actor, id uuid.UUID) error {
	buyer, err := s.find(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, buyer.OrganizationID, buyer.ID); err != nil {
		return fmt.Errorf("failed to delete buyer: %w", err)
	}
	s.audit.record(ctx, actor, model.ActionDeleteBuyer, buyer.ID.String(), buyer.BusinessName, nil)
	return nil
}

// RefreshStatus looks up the buyer's registration type and stores it.
func (s *buyerService) RefreshStatus(ctx context.Context, actor Actor, id uuid.UUID) (BuyerResponse, error) {
	buyer, err := s.find(ctx, actor, id)
	if err != nil {
		return BuyerResponse{}, err
	}

	status, err := s.CheckRegistration(ctx, actor, buyer.NTNCNIC)
	if err != nil {
		return BuyerResponse{}, err
	}

	now := s.now()
	buyer.RegistrationType = status.RegistrationType
	buyer.StatusCheckedAt = &now
	if err := s.repo.Update(ctx, buyer); err != nil {
		return BuyerResponse{}, fmt.Errorf("failed to update buyer: %w", err)
	}

	s.audit.record(ctx, actor, model.ActionRefreshBuyerStatus, buyer.ID.String(), buyer.BusinessName, map[string]interface{}{
		"registration_type": buyer.RegistrationType,
		"cached":            status.Cached,
	})
	return toBuyerResponse(buyer), nil
}

// CheckRegistration asks FBR for the registration type of ntnCnic. Answers
// are cached per NTN/CNIC since they rarely change.
func (s *buyerService) CheckRegistration(ctx context.Context, actor Actor, ntnCnic string) (RegistrationStatusResponse, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return RegistrationStatusResponse{}, err
	}
	ntnCnic = strings.TrimSpace(ntnCnic)
	if ntnCnic == "" {
		return RegistrationStatusResponse{}, fmt.Errorf("%w: NTN/CNIC is required", ErrInvalidRequest)
	}

	now := s.now()
	key := "fbr:reg-type:" + ntnCnic
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return RegistrationStatusResponse{NTNCNIC: ntnCnic, RegistrationType: cached, Cached: true, CheckedAt: now.Format(time.RFC3339)}, nil
	} else if err != nil {
		logger.FromContext(ctx).Warn("registration cache read failed", zap.Error(err))
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return RegistrationStatusResponse{}, fmt.Errorf("failed to load organization: %w", err)
	}
	if org.FBRToken == "" {
		return RegistrationStatusResponse{}, ErrFBRTokenMissing
	}

	regType, err := s.fbr.RegistrationType(ctx, org.FBRToken, ntnCnic, now)
	if err != nil {
		return RegistrationStatusResponse{}, gatewayError(err)
	}

	if err := s.cache.Set(ctx, key, regType, s.cacheTTL); err != nil {
		logger.FromContext(ctx).Warn("registration cache write failed", zap.Error(err))
	}
	return RegistrationStatusResponse{NTNCNIC: ntnCnic, RegistrationType: regType, CheckedAt: now.Format(time.RFC3339)}, nil
}
