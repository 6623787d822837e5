package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skillforge/skillforge-api/internal/models"
)

// InventoryRepository handles persistence for parts and orders.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository constructs the repository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const partColumns = "id, name, sku, quantity, min_stock, unit_price, created_at, updated_at"

// ListParts returns parts matching the provided filter.
func (r *InventoryRepository) ListParts(ctx context.Context, filter models.PartFilter) ([]models.Part, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.LowStock {
		where = append(where, "quantity <= min_stock")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"name":     "name",
		"quantity": "quantity",
		"sku":      "sku",
	}, "name")
	order := sortOrderOrDefault(filter.SortOrder)
	if filter.SortOrder == "" {
		order = "ASC"
	}
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM parts WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		partColumns, whereClause, sortColumn, order, limit, offset)

	var rows []models.Part
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list parts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM parts WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count parts: %w", err)
	}
	return rows, total, nil
}

// FindPart returns a single part.
func (r *InventoryRepository) FindPart(ctx context.Context, id string) (*models.Part, error) {
	var part models.Part
	if err := r.db.GetContext(ctx, &part, fmt.Sprintf("SELECT %s FROM parts WHERE id = $1", partColumns), id); err != nil {
		return nil, err
	}
	return &part, nil
}

// CreatePart inserts a new part.
func (r *InventoryRepository) CreatePart(ctx context.Context, part *models.Part) error {
	now := time.Now().UTC()
	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	part.CreatedAt = now
	part.UpdatedAt = now
	query := `INSERT INTO parts (id, name, sku, quantity, min_stock, unit_price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		part.ID, part.Name, part.SKU, part.Quantity, part.MinStock, part.UnitPrice, part.CreatedAt, part.UpdatedAt); err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	return nil
}

// UpdatePart persists mutable part fields (not quantity; use AdjustStock).
func (r *InventoryRepository) UpdatePart(ctx context.Context, part *models.Part) error {
	part.UpdatedAt = time.Now().UTC()
	query := `UPDATE parts SET name = $2, sku = $3, min_stock = $4, unit_price = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		part.ID, part.Name, part.SKU, part.MinStock, part.UnitPrice, part.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update part: %w", err)
	}
	return requireRowsAffected(res, "part")
}

// AdjustStock applies a signed delta to the part quantity. The guard in
// the WHERE clause rejects adjustments that would drive stock negative.
func (r *InventoryRepository) AdjustStock(ctx context.Context, id string, delta int) (*models.Part, error) {
	query := `UPDATE parts SET quantity = quantity + $2, updated_at = NOW()
WHERE id = $1 AND quantity + $2 >= 0
RETURNING ` + partColumns
	var part models.Part
	if err := r.db.GetContext(ctx, &part, query, id, delta); err != nil {
		return nil, err
	}
	return &part, nil
}

const orderColumns = `o.id, o.part_id, o.requested_by, o.quantity, o.status, o.decided_by, o.decided_at, o.notes, o.created_at, o.updated_at`

// ListOrders returns order details matching the provided filter.
func (r *InventoryRepository) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, int, error) {
	base := `FROM orders o
JOIN parts pt ON pt.id = o.part_id
JOIN users u ON u.id = o.requested_by`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.PartID != "" {
		where = append(where, fmt.Sprintf("o.part_id = $%d", len(args)+1))
		args = append(args, filter.PartID)
	}
	if filter.RequestedBy != "" {
		where = append(where, fmt.Sprintf("o.requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"status":     "o.status",
		"created_at": "o.created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s,
        pt.name AS part_name, pt.sku AS part_sku, u.full_name AS requester_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, orderColumns, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.OrderDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return rows, total, nil
}

// FindOrder returns a single order.
func (r *InventoryRepository) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT id, part_id, requested_by, quantity, status, decided_by, decided_at, notes, created_at, updated_at
FROM orders WHERE id = $1`
	var ord models.Order
	if err := r.db.GetContext(ctx, &ord, query, id); err != nil {
		return nil, err
	}
	return &ord, nil
}

// CreateOrder inserts a pending order.
func (r *InventoryRepository) CreateOrder(ctx context.Context, ord *models.Order) error {
	now := time.Now().UTC()
	if ord.ID == "" {
		ord.ID = uuid.NewString()
	}
	ord.CreatedAt = now
	ord.UpdatedAt = now
	query := `INSERT INTO orders (id, part_id, requested_by, quantity, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		ord.ID, ord.PartID, ord.RequestedBy, ord.Quantity, ord.Status, ord.Notes, ord.CreatedAt, ord.UpdatedAt); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// DecideOrder moves a pending order to approved or rejected.
func (r *InventoryRepository) DecideOrder(ctx context.Context, id, deciderID string, status models.OrderStatus, notes *string, ts time.Time) error {
	query := `UPDATE orders SET status = $2, decided_by = $3, decided_at = $4, notes = COALESCE($5, notes), updated_at = $4
WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, deciderID, ts, notes, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("decide order: %w", err)
	}
	return requireRowsAffected(res, "order")
}

// FulfillOrder marks an approved order fulfilled and decrements part stock
// in one transaction. Insufficient stock aborts with sql.ErrNoRows from the
// guarded stock update.
func (r *InventoryRepository) FulfillOrder(ctx context.Context, id string, ts time.Time) (*models.Part, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin fulfill order: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var ord models.Order
	if err := tx.GetContext(ctx, &ord,
		"SELECT id, part_id, quantity, status FROM orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	if ord.Status != models.OrderStatusApproved {
		return nil, sql.ErrNoRows
	}

	var part models.Part
	stockQuery := `UPDATE parts SET quantity = quantity - $2, updated_at = $3
WHERE id = $1 AND quantity >= $2
RETURNING ` + partColumns
	if err := tx.GetContext(ctx, &part, stockQuery, ord.PartID, ord.Quantity, ts); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1", id, models.OrderStatusFulfilled, ts)
	if err != nil {
		return nil, fmt.Errorf("fulfill order: %w", err)
	}
	if err := requireRowsAffected(res, "order"); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fulfill order: %w", err)
	}
	commit = true
	return &part, nil
}
