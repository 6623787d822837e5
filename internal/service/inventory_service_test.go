package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockInventoryRepo struct {
	parts  map[string]models.Part
	orders map[string]models.Order
}

func newMockInventoryRepo() *mockInventoryRepo {
	return &mockInventoryRepo{parts: map[string]models.Part{}, orders: map[string]models.Order{}}
}

func (m *mockInventoryRepo) ListParts(ctx context.Context, filter models.PartFilter) ([]models.Part, int, error) {
	out := make([]models.Part, 0, len(m.parts))
	for _, p := range m.parts {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockInventoryRepo) FindPart(ctx context.Context, id string) (*models.Part, error) {
	p, ok := m.parts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := p
	return &copied, nil
}

func (m *mockInventoryRepo) CreatePart(ctx context.Context, part *models.Part) error {
	m.parts[part.ID] = *part
	return nil
}

func (m *mockInventoryRepo) UpdatePart(ctx context.Context, part *models.Part) error {
	if _, ok := m.parts[part.ID]; !ok {
		return sql.ErrNoRows
	}
	m.parts[part.ID] = *part
	return nil
}

func (m *mockInventoryRepo) AdjustStock(ctx context.Context, id string, delta int) (*models.Part, error) {
	p, ok := m.parts[id]
	if !ok || p.Quantity+delta < 0 {
		return nil, sql.ErrNoRows
	}
	p.Quantity += delta
	m.parts[id] = p
	copied := p
	return &copied, nil
}

func (m *mockInventoryRepo) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error) {
	out := make([]models.OrderDetail, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, models.OrderDetail{Order: o})
	}
	return out, len(out), nil
}

func (m *mockInventoryRepo) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := o
	return &copied, nil
}

func (m *mockInventoryRepo) CreateOrder(ctx context.Context, ord *models.Order) error {
	m.orders[ord.ID] = *ord
	return nil
}

func (m *mockInventoryRepo) DecideOrder(ctx context.Context, id, deciderID string, status models.OrderStatus, notes *string, ts time.Time) error {
	o, ok := m.orders[id]
	if !ok || o.Status != models.OrderStatusPending {
		return sql.ErrNoRows
	}
	o.Status = status
	o.DecidedBy = &deciderID
	o.DecidedAt = &ts
	o.Notes = notes
	m.orders[id] = o
	return nil
}

func (m *mockInventoryRepo) FulfillOrder(ctx context.Context, id string, ts time.Time) (*models.Part, error) {
	o, ok := m.orders[id]
	if !ok || o.Status != models.OrderStatusApproved {
		return nil, sql.ErrNoRows
	}
	p, ok := m.parts[o.PartID]
	if !ok || p.Quantity < o.Quantity {
		return nil, sql.ErrNoRows
	}
	p.Quantity -= o.Quantity
	m.parts[o.PartID] = p
	o.Status = models.OrderStatusFulfilled
	m.orders[id] = o
	copied := p
	return &copied, nil
}

func newInventoryService(repo *mockInventoryRepo, pub *recordingPublisher) *InventoryService {
	cfg := InventoryConfig{DefaultMinStock: 3}
	if pub == nil {
		return NewInventoryService(repo, nil, nil, nil, cfg)
	}
	return NewInventoryService(repo, pub, nil, nil, cfg)
}

func TestInventoryServiceCreatePartDefaultMinStock(t *testing.T) {
	repo := newMockInventoryRepo()
	svc := newInventoryService(repo, nil)

	part, err := svc.CreatePart(context.Background(), CreatePartRequest{
		Name:     "Servo motor",
		SKU:      "SRV-9",
		Quantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, part.MinStock)

	explicit := 0
	part, err = svc.CreatePart(context.Background(), CreatePartRequest{
		Name:     "Gear set",
		SKU:      "GRS-1",
		Quantity: 4,
		MinStock: &explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, part.MinStock)
}

func TestInventoryServiceAdjustStock(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.parts["part-1"] = models.Part{ID: "part-1", Name: "Servo motor", SKU: "SRV-9", Quantity: 10, MinStock: 2}
	svc := newInventoryService(repo, nil)

	part, err := svc.AdjustStock(context.Background(), "part-1", AdjustStockRequest{Delta: -3})
	require.NoError(t, err)
	assert.Equal(t, 7, part.Quantity)
}

func TestInventoryServiceAdjustStockBelowZero(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.parts["part-1"] = models.Part{ID: "part-1", Quantity: 2}
	svc := newInventoryService(repo, nil)

	_, err := svc.AdjustStock(context.Background(), "part-1", AdjustStockRequest{Delta: -5})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, appErr.Code)
	assert.Equal(t, 2, repo.parts["part-1"].Quantity)
}

func TestInventoryServiceOrderWorkflow(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.parts["22222222-2222-2222-2222-222222222222"] = models.Part{
		ID: "22222222-2222-2222-2222-222222222222", Name: "Gear set", SKU: "GRS-1", Quantity: 10, MinStock: 1,
	}
	pub := &recordingPublisher{}
	svc := newInventoryService(repo, pub)

	ord, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartID:   "22222222-2222-2222-2222-222222222222",
		Quantity: 4,
	}, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, ord.Status)

	ord, err = svc.DecideOrder(context.Background(), ord.ID, DecideOrderRequest{Approved: true}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, ord.Status)

	ord, err = svc.FulfillOrder(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFulfilled, ord.Status)
	assert.Equal(t, 6, repo.parts["22222222-2222-2222-2222-222222222222"].Quantity)

	assert.Contains(t, pub.events, "order.pending")
	assert.Contains(t, pub.events, "order.approved")
	assert.Contains(t, pub.events, "order.fulfilled")
	assert.Contains(t, pub.events, "stock.changed")
}

func TestInventoryServiceFulfillInsufficientStock(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.parts["part-1"] = models.Part{ID: "part-1", Quantity: 2}
	repo.orders["ord-1"] = models.Order{ID: "ord-1", PartID: "part-1", Quantity: 5, Status: models.OrderStatusApproved}
	svc := newInventoryService(repo, nil)

	_, err := svc.FulfillOrder(context.Background(), "ord-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, appErr.Code)
	assert.Equal(t, models.OrderStatusApproved, repo.orders["ord-1"].Status)
}

func TestInventoryServiceFulfillRequiresApproval(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.parts["part-1"] = models.Part{ID: "part-1", Quantity: 10}
	repo.orders["ord-1"] = models.Order{ID: "ord-1", PartID: "part-1", Quantity: 5, Status: models.OrderStatusPending}
	svc := newInventoryService(repo, nil)

	_, err := svc.FulfillOrder(context.Background(), "ord-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestInventoryServiceDecideTwice(t *testing.T) {
	repo := newMockInventoryRepo()
	repo.orders["ord-1"] = models.Order{ID: "ord-1", PartID: "part-1", Quantity: 1, Status: models.OrderStatusRejected}
	svc := newInventoryService(repo, nil)

	_, err := svc.DecideOrder(context.Background(), "ord-1", DecideOrderRequest{Approved: true}, "admin-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
