package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"einvoice/internal/model"
	"einvoice/internal/repository"

	"gorm.io/gorm"
)

type UpdateOrganizationRequest struct {
	BusinessName *string `json:"business_name"`
	Province     *string `json:"province"`
	Address      *string `json:"address"`
	FBRToken     *string `json:"fbr_token"` // empty string clears the token
}

type OrganizationResponse struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	NTNCNIC      string `json:"ntn_cnic"`
	Province     string `json:"province"`
	Address      string `json:"address"`
	HasFBRToken  bool   `json:"has_fbr_token"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type OrganizationService interface {
	Get(ctx context.Context, actor Actor) (OrganizationResponse, error)
	Update(ctx context.Context, actor Actor, req UpdateOrganizationRequest) (OrganizationResponse, error)
}

type organizationService struct {
	repo  repository.OrganizationRepository
	audit auditor
}

func NewOrganizationService(repo repository.OrganizationRepository, auditRepo repository.AuditRepository) OrganizationService {
	return &organizationService{repo: repo, audit: auditor{repo: auditRepo}}
}

func toOrganizationResponse(org *model.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:           org.ID.String(),
		BusinessName: org.BusinessName,
		NTNCNIC:      org.NTNCNIC,
		Province:     org.Province,
		Address:      org.Address,
		HasFBRToken:  org.FBRToken != "",
		CreatedAt:    org.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    org.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *organizationService) load(ctx context.Context, actor Actor) (*model.Organization, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, err
	}
	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("organization %w", ErrNotFound)
		}
		return nil, err
	}
	return org, nil
}

func (s *organizationService) Get(ctx context.Context, actor Actor) (OrganizationResponse, error) {
	org, err := s.load(ctx, actor)
	if err != nil {
		return OrganizationResponse{}, err
	}
	return toOrganizationResponse(org), nil
}

// Update changes the seller profile. NTN/CNIC is fixed at registration.
func (s *organizationService) Update(ctx context.Context, actor Actor, req UpdateOrganizationRequest) (OrganizationResponse, error) {
	org, err := s.load(ctx, actor)
	if err != nil {
		return OrganizationResponse{}, err
	}

	changed := []string{}
	if req.BusinessName != nil {
		name := strings.TrimSpace(*req.BusinessName)
		if name == "" {
			return OrganizationResponse{}, fmt.Errorf("%w: business_name cannot be empty", ErrInvalidRequest)
		}
		org.BusinessName = name
		changed = append(changed, "business_name")
	}
	if req.Province != nil {
		org.Province = strings.TrimSpace(*req.Province)
		changed = append(changed, "province")
	}
	if req.Address != nil {
		org.Address = strings.TrimSpace(*req.Address)
		changed = append(changed, "address")
	}
	if req.FBRToken != nil {
		org.FBRToken = strings.TrimSpace(*req.FBRToken)
		changed = append(changed, "fbr_token")
	}

	if err := s.repo.Update(ctx, org); err != nil {
		return OrganizationResponse{}, fmt.Errorf("failed to update organization: %w", err)
	}

	s.audit.record(ctx, actor, model.ActionUpdateOrganization, org.ID.String(), org.BusinessName, map[string]interface{}{
		"fields": changed,
	})
	return toOrganizationResponse(org), nil
}
