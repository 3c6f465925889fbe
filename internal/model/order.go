package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	PostCode string `json:"postCode"`
	Country  string `json:"country"`
}

type OrderItem struct {
	ID       string          `json:"_id,omitempty"`
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type Order struct {
	ID              string          `json:"_id"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
}

// PaidConsistent reports whether isPaid and paidAt agree.
func (o *Order) PaidConsistent() bool {
	return o.IsPaid == (o.PaidAt != nil)
}

// PaymentConfig is what a payment widget needs before it can render.
type PaymentConfig struct {
	ClientID string `json:"clientId"`
	Currency string `json:"currency"`
}
