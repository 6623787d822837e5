package models

import "time"

// Part is a stocked inventory item used in training workshops.
type Part struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SKU       string    `db:"sku" json:"sku"`
	Quantity  int       `db:"quantity" json:"quantity"`
	MinStock  int       `db:"min_stock" json:"min_stock"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the part needs reordering.
func (p Part) LowStock() bool {
	return p.Quantity <= p.MinStock
}

// PartFilter scopes part listing queries.
type PartFilter struct {
	Search    string
	LowStock  bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OrderStatus represents the lifecycle of a parts order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

// Valid returns true when the status is a supported value.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected, OrderStatusFulfilled:
		return true
	default:
		return false
	}
}

// Order requests a quantity of one part for a requester.
type Order struct {
	ID          string      `db:"id" json:"id"`
	PartID      string      `db:"part_id" json:"part_id"`
	RequestedBy string      `db:"requested_by" json:"requested_by"`
	Quantity    int         `db:"quantity" json:"quantity"`
	Status      OrderStatus `db:"status" json:"status"`
	DecidedBy   *string     `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	Notes       *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderDetail enriches Order with part and requester info.
type OrderDetail struct {
	Order
	PartName      string `db:"part_name" json:"part_name"`
	PartSKU       string `db:"part_sku" json:"part_sku"`
	RequesterName string `db:"requester_name" json:"requester_name"`
}

// OrderFilter scopes order listing queries.
type OrderFilter struct {
	PartID      string
	RequestedBy string
	Status      *OrderStatus
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
