package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                 int64       `bun:"id,pk,autoincrement"`
	OrderID            string      `bun:"order_id,notnull,unique"`
	BuyerID            string      `bun:"buyer_id,notnull"`
	SellerID           string      `bun:"seller_id,notnull"`
	TotalAmount        int64       `bun:"total_amount,notnull"`
	Status             OrderStatus `bun:"status,notnull"`
	ActualDeliveryDate *time.Time  `bun:"actual_delivery_date"`
	CreatedAt          time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}
