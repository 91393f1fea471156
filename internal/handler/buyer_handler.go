package handler

import (
	"net/http"

	"einvoice/internal/middleware"
	"einvoice/internal/service"
	"einvoice/pkg/pagination"
	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

type BuyerHandler struct {
	buyerService service.BuyerService
	auth         *middleware.Authenticator
}

func NewBuyerHandler(buyerService service.BuyerService, auth *middleware.Authenticator) *BuyerHandler {
	return &BuyerHandler{buyerService: buyerService, auth: auth}
}

func (h *BuyerHandler) RegisterRoutes(router *gin.RouterGroup) {
	buyers := router.Group("/api/buyers")
	buyers.Use(h.auth.RequireRole(anyRole...))
	{
		buyers.GET("", h.ListBuyers)
		buyers.GET("/registration", h.CheckRegistration)
		buyers.GET("/:id", h.GetBuyer)
		buyers.POST("", h.CreateBuyer)
		buyers.PUT("/:id", h.UpdateBuyer)
		buyers.DELETE("/:id", h.DeleteBuyer)
		buyers.POST("/:id/refresh-status", h.RefreshStatus)
	}
}

// CreateBuyer adds a buyer to the organization's registry
// @Summary      Create buyer
// @Tags         buyers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BuyerRequest  true  "Buyer"
// @Success      201      {object}  response.Response{data=service.BuyerResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/buyers [post]
func (h *BuyerHandler) CreateBuyer(c *gin.Context) {
	var req service.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	buyer, err := h.buyerService.CreateBuyer(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, buyer))
}

// ListBuyers returns a paginated list of buyers
// @Summary      List buyers
// @Tags         buyers
// @Security     BearerAuth
// @Produce      json
// @Param        q      query     string  false  "Search name or NTN/CNIC"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/buyers [get]
func (h *BuyerHandler) ListBuyers(c *gin.Context) {
	p := pagination.Parse(c)

	buyers, total, err := h.buyerService.ListBuyers(c.Request.Context(), actorFrom(c), c.Query("q"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Result(buyers, total)))
}

// GetBuyer
// @Summary      Get buyer
// @Tags         buyers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Buyer ID"
// @Success      200  {object}  response.Response{data=service.BuyerResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/buyers/{id} [get]
func (h *BuyerHandler) GetBuyer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	buyer, err := h.buyerService.GetBuyer(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, buyer))
}

// UpdateBuyer
// @Summary      Update buyer
// @Tags         buyers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Buyer ID"
// @Param        payload  body      service.BuyerRequest  true  "Buyer"
// @Success      200      {object}  response.Response{data=service.BuyerResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/buyers/{id} [put]
func (h *BuyerHandler) UpdateBuyer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req service.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	buyer, err := h.buyerService.UpdateBuyer(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, buyer))
}

// DeleteBuyer
// @Summary      Delete buyer
// @Tags         buyers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Buyer ID"
// @Success      200  {object}  response.Response
// @Router       /api/buyers/{id} [delete]
func (h *BuyerHandler) DeleteBuyer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.buyerService.DeleteBuyer(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Buyer deleted successfully"))
}

// RefreshStatus looks up the buyer's FBR registration type and stores it
// @Summary      Refresh buyer registration status
// @Tags         buyers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Buyer ID"
// @Success      200  {object}  response.Response{data=service.BuyerResponse}
// @Failure      422  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/buyers/{id}/refresh-status [post]
func (h *BuyerHandler) RefreshStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	buyer, err := h.buyerService.RefreshStatus(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, buyer))
}

// CheckRegistration asks FBR whether an NTN/CNIC is registered
// @Summary      Check registration type
// @Tags         buyers
// @Security     BearerAuth
// @Produce      json
// @Param        ntn_cnic  query     string  true  "Buyer NTN/CNIC"
// @Success      200       {object}  response.Response{data=service.RegistrationStatusResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/buyers/registration [get]
func (h *BuyerHandler) CheckRegistration(c *gin.Context) {
	status, err := h.buyerService.CheckRegistration(c.Request.Context(), actorFrom(c), c.Query("ntn_cnic"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, status))
}
