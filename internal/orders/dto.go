package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/pagination"
)

// Actor is the caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.UserID != uuid.Nil && a.Role.IsAdmin()
}

// OrderItemDTO is one purchased line.
type OrderItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	ProductNameEN string          `json:"product_name_en"`
	ProductNameAR string          `json:"product_name_ar"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// CustomerDTO identifies the buyer on admin views.
type CustomerDTO struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Phone    *string   `json:"phone,omitempty"`
}

// OrderDTO is the full order view.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          enums.OrderStatus   `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	DeliveryType    enums.DeliveryType  `json:"delivery_type"`
	Address         *string             `json:"address,omitempty"`
	Phone           *string             `json:"phone,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentProofURL *string             `json:"payment_proof_url,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	ItemCount       int                 `json:"item_count"`
	Items           []OrderItemDTO      `json:"items"`
	Customer        *CustomerDTO        `json:"customer,omitempty"`
	Cancellable     bool                `json:"cancellable"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// AdminOrderFilter narrows the back-office list.
type AdminOrderFilter struct {
	Status     string
	Pagination pagination.Params
}

// AdminOrderList is a cursor page of orders.
type AdminOrderList = pagination.Page[OrderDTO]

// UpdateStatusRequest is the admin status body.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// VerifyPaymentRequest approves or rejects an InstaPay proof.
type VerifyPaymentRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

// FromModel builds the DTO; the customer block is included only when the user was loaded.
func FromModel(o *models.Order, includeCustomer bool) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		TotalAmount:     o.TotalAmount,
		DeliveryType:    o.DeliveryType,
		Address:         o.Address,
		Phone:           o.Phone,
		PaymentMethod:   o.PaymentMethod,
		PaymentProofURL: o.PaymentProofURL,
		Notes:           o.Notes,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		Cancellable:     o.Status.CustomerCancellable(),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			ProductNameEN: item.ProductNameEN,
			ProductNameAR: item.ProductNameAR,
			Quantity:      item.Quantity,
			Price:         item.Price,
			LineTotal:     item.LineTotal(),
		})
	}
	if includeCustomer && o.User != nil {
		dto.Customer = &CustomerDTO{
			ID:       o.User.ID,
			Email:    o.User.Email,
			FullName: o.User.FullName,
			Phone:    o.User.Phone,
		}
	}
	return dto
}
