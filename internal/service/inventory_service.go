package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type inventoryRepository interface {
	ListParts(ctx context.Context, filter models.PartFilter) ([]models.Part, int, error)
	FindPart(ctx context.Context, id string) (*models.Part, error)
	CreatePart(ctx context.Context, part *models.Part) error
	UpdatePart(ctx context.Context, part *models.Part) error
	AdjustStock(ctx context.Context, id string, delta int) (*models.Part, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error)
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, ord *models.Order) error
	DecideOrder(ctx context.Context, id, deciderID string, status models.OrderStatus, notes *string, ts time.Time) error
	FulfillOrder(ctx context.Context, id string, ts time.Time) (*models.Part, error)
}

// CreatePartRequest registers a stocked part. When min_stock is omitted the
// configured default applies.
type CreatePartRequest struct {
	Name      string  `json:"name" validate:"required"`
	SKU       string  `json:"sku" validate:"required,max=64"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	MinStock  *int    `json:"min_stock" validate:"omitempty,gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// UpdatePartRequest edits part metadata. Stock levels change only through
// AdjustStock and order fulfilment.
type UpdatePartRequest struct {
	Name      string  `json:"name" validate:"required"`
	SKU       string  `json:"sku" validate:"required,max=64"`
	MinStock  int     `json:"min_stock" validate:"gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// AdjustStockRequest applies a signed stock delta.
type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// CreateOrderRequest requests a quantity of one part.
type CreateOrderRequest struct {
	PartID   string  `json:"part_id" validate:"required,uuid"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

// DecideOrderRequest approves or rejects a pending order.
type DecideOrderRequest struct {
	Approved bool    `json:"approved"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

// InventoryConfig tunes parts inventory defaults.
type InventoryConfig struct {
	DefaultMinStock int
}

// InventoryService manages parts stock and the order workflow.
type InventoryService struct {
	repo            inventoryRepository
	events          eventPublisher
	validator       *validator.Validate
	logger          *zap.Logger
	defaultMinStock int
}

// NewInventoryService creates an instance of InventoryService.
func NewInventoryService(repo inventoryRepository, events eventPublisher, validate *validator.Validate, logger *zap.Logger, cfg InventoryConfig) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InventoryService{
		repo:            repo,
		events:          events,
		validator:       validate,
		logger:          logger,
		defaultMinStock: cfg.DefaultMinStock,
	}
}

// ListParts returns parts matching the filter.
func (s *InventoryService) ListParts(ctx context.Context, filter models.PartFilter) ([]models.Part, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	parts, total, err := s.repo.ListParts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parts")
	}
	return parts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetPart returns one part.
func (s *InventoryService) GetPart(ctx context.Context, id string) (*models.Part, error) {
	part, err := s.repo.FindPart(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "part not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load part")
	}
	return part, nil
}

// CreatePart registers a new part.
func (s *InventoryService) CreatePart(ctx context.Context, req CreatePartRequest) (*models.Part, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create part payload")
	}
	minStock := s.defaultMinStock
	if req.MinStock != nil {
		minStock = *req.MinStock
	}
	part := &models.Part{
		ID:        uuid.NewString(),
		Name:      req.Name,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
		MinStock:  minStock,
		UnitPrice: req.UnitPrice,
	}
	if err := s.repo.CreatePart(ctx, part); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create part")
	}
	return part, nil
}

// UpdatePart edits part metadata.
func (s *InventoryService) UpdatePart(ctx context.Context, id string, req UpdatePartRequest) (*models.Part, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update part payload")
	}
	part, err := s.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	part.Name = req.Name
	part.SKU = req.SKU
	part.MinStock = req.MinStock
	part.UnitPrice = req.UnitPrice
	if err := s.repo.UpdatePart(ctx, part); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "part not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update part")
	}
	return part, nil
}

// AdjustStock applies a signed delta. A delta that would drive the
// quantity negative is rejected.
func (s *InventoryService) AdjustStock(ctx context.Context, id string, req AdjustStockRequest) (*models.Part, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stock adjustment payload")
	}
	if _, err := s.GetPart(ctx, id); err != nil {
		return nil, err
	}

	part, err := s.repo.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientStock, "stock cannot go below zero")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust stock")
	}
	s.publishStock(part)
	return part, nil
}

// ListOrders returns parts orders.
func (s *InventoryService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	return orders, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetOrder returns one order.
func (s *InventoryService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ord, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	return ord, nil
}

// CreateOrder requests parts. The quantity is not reserved until the order
// is fulfilled.
func (s *InventoryService) CreateOrder(ctx context.Context, req CreateOrderRequest, requesterID string) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create order payload")
	}
	if _, err := s.GetPart(ctx, req.PartID); err != nil {
		return nil, err
	}

	ord := &models.Order{
		ID:          uuid.NewString(),
		PartID:      req.PartID,
		RequestedBy: requesterID,
		Quantity:    req.Quantity,
		Status:      models.OrderStatusPending,
		Notes:       req.Notes,
	}
	if err := s.repo.CreateOrder(ctx, ord); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}
	s.publishOrder(ord)
	return ord, nil
}

// DecideOrder approves or rejects a pending order.
func (s *InventoryService) DecideOrder(ctx context.Context, id string, req DecideOrderRequest, deciderID string) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}

	status := models.OrderStatusApproved
	if !req.Approved {
		status = models.OrderStatusRejected
	}
	if err := s.repo.DecideOrder(ctx, id, deciderID, status, req.Notes, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "order is not pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide order")
	}

	ord, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ord)
	return ord, nil
}

// FulfillOrder deducts stock for an approved order and marks it fulfilled.
// The deduction and the status change happen in one transaction.
func (s *InventoryService) FulfillOrder(ctx context.Context, id string) (*models.Order, error) {
	ord, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord.Status != models.OrderStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "order is not approved")
	}

	part, err := s.repo.FulfillOrder(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientStock, "not enough stock to fulfil the order")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fulfil order")
	}
	if part.LowStock() {
		s.logger.Warn("part below minimum stock after fulfilment",
			zap.String("part_id", part.ID),
			zap.String("sku", part.SKU),
			zap.Int("quantity", part.Quantity),
			zap.Int("min_stock", part.MinStock))
	}
	s.publishStock(part)

	ord, err = s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ord)
	return ord, nil
}

func (s *InventoryService) publishStock(part *models.Part) {
	if s.events == nil || part == nil {
		return
	}
	s.events.Publish("stock.changed", part)
}

func (s *InventoryService) publishOrder(ord *models.Order) {
	if s.events == nil || ord == nil {
		return
	}
	s.events.Publish("order."+string(ord.Status), ord)
}
