package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillforge/skillforge-api/internal/models"
	"github.com/skillforge/skillforge-api/internal/service"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
	"github.com/skillforge/skillforge-api/pkg/response"
)

// InventoryHandler exposes parts catalog and order endpoints.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs InventoryHandler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// ListParts godoc
// @Summary List inventory parts
// @Tags Inventory
// @Produce json
// @Param search query string false "Search by name or SKU"
// @Param lowStock query bool false "Only parts at or below minimum stock"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inventory/parts [get]
func (h *InventoryHandler) ListParts(c *gin.Context) {
	var filter models.PartFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.LowStock = c.Query("lowStock") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	parts, pagination, err := h.inventory.ListParts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parts, pagination)
}

// GetPart godoc
// @Summary Get part detail
// @Tags Inventory
// @Produce json
// @Param id path string true "Part ID"
// @Success 200 {object} response.Envelope
// @Router /inventory/parts/{id} [get]
func (h *InventoryHandler) GetPart(c *gin.Context) {
	part, err := h.inventory.GetPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, part, nil)
}

// CreatePart godoc
// @Summary Create part
// @Tags Inventory
// @Accept json
// @Produce json
// @Param payload body service.CreatePartRequest true "Part payload"
// @Success 201 {object} response.Envelope
// @Router /admin/inventory/parts [post]
func (h *InventoryHandler) CreatePart(c *gin.Context) {
	var req service.CreatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	part, err := h.inventory.CreatePart(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, part)
}

// UpdatePart godoc
// @Summary Update part
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Part ID"
// @Param payload body service.UpdatePartRequest true "Part payload"
// @Success 200 {object} response.Envelope
// @Router /admin/inventory/parts/{id} [put]
func (h *InventoryHandler) UpdatePart(c *gin.Context) {
	var req service.UpdatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	part, err := h.inventory.UpdatePart(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, part, nil)
}

// AdjustStock godoc
// @Summary Adjust part stock by a delta
// @Description Fails when the adjustment would take stock below zero
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Part ID"
// @Param payload body service.AdjustStockRequest true "Stock delta"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/inventory/parts/{id}/stock [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	part, err := h.inventory.AdjustStock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, part, nil)
}

// ListOrders godoc
// @Summary List part orders
// @Tags Inventory
// @Produce json
// @Param partId query string false "Filter by part"
// @Param requestedBy query string false "Filter by requester"
// @Param status query string false "Filter by order status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inventory/orders [get]
func (h *InventoryHandler) ListOrders(c *gin.Context) {
	var filter models.OrderFilter
	filter.PartID = c.Query("partId")
	filter.RequestedBy = c.Query("requestedBy")
	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(strings.ToLower(status))
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	orders, pagination, err := h.inventory.ListOrders(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// GetOrder godoc
// @Summary Get order detail
// @Tags Inventory
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /inventory/orders/{id} [get]
func (h *InventoryHandler) GetOrder(c *gin.Context) {
	order, err := h.inventory.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// CreateOrder godoc
// @Summary Request parts
// @Tags Inventory
// @Accept json
// @Produce json
// @Param payload body service.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Router /inventory/orders [post]
func (h *InventoryHandler) CreateOrder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.inventory.CreateOrder(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// DecideOrder godoc
// @Summary Approve or reject a pending order
// @Tags Inventory
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body service.DecideOrderRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/inventory/orders/{id}/decide [post]
func (h *InventoryHandler) DecideOrder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DecideOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.inventory.DecideOrder(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// FulfillOrder godoc
// @Summary Fulfil an approved order
// @Description Deducts the ordered quantity from part stock
// @Tags Inventory
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/inventory/orders/{id}/fulfill [post]
func (h *InventoryHandler) FulfillOrder(c *gin.Context) {
	order, err := h.inventory.FulfillOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}
