package handler

import (
	"net/http"

	"einvoice/internal/middleware"
	"einvoice/internal/service"
	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	orgService service.OrganizationService
	auth       *middleware.Authenticator
}

func NewOrganizationHandler(orgService service.OrganizationService, auth *middleware.Authenticator) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService, auth: auth}
}

func (h *OrganizationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/organization")
	{
		group.GET("", h.auth.RequireRole(anyRole...), h.GetOrganization)
		group.PUT("", h.auth.RequireRole("admin"), h.UpdateOrganization)
	}
}

// GetOrganization returns the seller profile of the caller's organization
// @Summary      Get organization
// @Tags         organization
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.OrganizationResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/organization [get]
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	org, err := h.orgService.Get(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, org))
}

// UpdateOrganization changes the seller profile and FBR token
// @Summary      Update organization
// @Description  Fields left out are kept; an empty fbr_token removes the token
// @Tags         organization
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateOrganizationRequest  true  "Organization Payload"
// @Success      200      {object}  response.Response{data=service.OrganizationResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/organization [put]
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	var req service.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	org, err := h.orgService.Update(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, org))
}
