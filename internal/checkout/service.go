package checkout

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/cart"
	"github.com/stmary/giftshop-backend/internal/media"
	"github.com/stmary/giftshop-backend/internal/orders"
	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/internal/settings"
	pkgcheckout "github.com/stmary/giftshop-backend/pkg/checkout"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	"github.com/stmary/giftshop-backend/pkg/storetime"
	"github.com/stmary/giftshop-backend/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsReader interface {
	Get(ctx context.Context) (*settings.SettingsDTO, error)
}

type proofStore interface {
	Upload(ctx context.Context, input media.UploadInput) (*media.Upload, error)
	Delete(ctx context.Context, object string) error
}

// Service places orders from the caller's server cart.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error)
}

// PlaceOrderInput is the checkout form plus the optional proof image.
type PlaceOrderInput struct {
	Form  pkgcheckout.Input
	Proof io.Reader
}

// PlaceOrderResult is returned to the client after a successful checkout.
type PlaceOrderResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	TxRunner    txRunner
	CartRepo    cart.CartRepository
	OrdersRepo  orders.Repository
	Settings    settingsReader
	Proofs      proofStore
	Outbox      outbox.Emitter
	Clock       storetime.Clock
	Revalidator revalidate.Revalidator
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	cartRepo    cart.CartRepository
	ordersRepo  orders.Repository
	settings    settingsReader
	proofs      proofStore
	outbox      outbox.Emitter
	clock       storetime.Clock
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if params.Proofs == nil {
		return nil, fmt.Errorf("proof store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Revalidator == nil {
		params.Revalidator = revalidate.Nop{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		tx:          params.TxRunner,
		cartRepo:    params.CartRepo,
		ordersRepo:  params.OrdersRepo,
		settings:    params.Settings,
		proofs:      params.Proofs,
		outbox:      params.Outbox,
		clock:       params.Clock,
		revalidator: params.Revalidator,
		logg:        params.Logger,
	}, nil
}

// PlaceOrder validates the form, uploads the InstaPay proof, then creates the
// order, clears the cart and queues order_created in one transaction. A failed
// transaction deletes the uploaded proof.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	details, err := pkgcheckout.ValidateInput(input.Form)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithUserID(ctx, userID.String())

	storeSettings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var proof *media.Upload
	if details.PaymentMethod.RequiresProof() {
		if input.Proof == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment proof is required for InstaPay").
				WithDetails(map[string]any{"field": "payment_proof"})
		}
		proof, err = s.proofs.Upload(ctx, media.UploadInput{
			Kind:    enums.MediaKindPaymentProof,
			OwnerID: userID,
			Body:    input.Proof,
		})
		if err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID:        userID,
		Status:        enums.OrderStatusPendingPayment,
		DeliveryType:  details.DeliveryType,
		Address:       details.Address,
		Phone:         details.Phone,
		PaymentMethod: details.PaymentMethod,
		Notes:         details.Notes,
	}
	if proof != nil {
		order.PaymentProofURL = &proof.URL
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		rows, err := cartRepo.ListWithProducts(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "your cart is empty")
		}
		items, subtotal, err := snapshot(rows, s.clock)
		if err != nil {
			return err
		}
		order.Items = items
		order.Subtotal = subtotal
		order.DeliveryFee = deliveryFee(storeSettings.Model(), details.DeliveryType, subtotal)
		order.TotalAmount = subtotal.Add(order.DeliveryFee)

		if err := s.ordersRepo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if err := cartRepo.Clear(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        userID,
				PaymentMethod: order.PaymentMethod,
				DeliveryType:  order.DeliveryType,
				TotalAmount:   order.TotalAmount.StringFixed(2),
			},
		})
	})
	if err != nil {
		if proof != nil {
			if delErr := s.proofs.Delete(ctx, proof.Object); delErr != nil {
				s.logg.Error(s.logg.WithField(logCtx, "object", proof.Object), "remove orphaned payment proof failed", delErr)
			}
		}
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create order")
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(logCtx, order.ID.String()), "order placed")
	s.revalidator.Paths(ctx, revalidate.PathOrders, revalidate.PathCart, revalidate.PathCheckout)
	return &PlaceOrderResult{OrderID: order.ID, Status: order.Status, TotalAmount: order.TotalAmount}, nil
}

// snapshot freezes names and effective prices; any hidden or out-of-stock
// line aborts the checkout.
func snapshot(rows []models.CartItem, clock storetime.Clock) ([]models.OrderItem, decimal.Decimal, error) {
	today := clock.Today()
	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(rows))
	for i := range rows {
		row := rows[i]
		if row.Product == nil {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "an item in your cart is no longer available")
		}
		if err := visibility.EnsurePurchasable(row.Product); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "an item in your cart is no longer available").
					WithDetails(map[string]any{"product_id": row.ProductID})
			}
			return nil, decimal.Zero, err
		}
		productID := row.ProductID
		item := models.OrderItem{
			ProductID:     &productID,
			ProductNameEN: row.Product.NameEN,
			ProductNameAR: row.Product.NameAR,
			Quantity:      row.Quantity,
			Price:         row.Product.EffectivePrice(today),
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, subtotal, nil
}

func deliveryFee(store models.StoreSettings, deliveryType enums.DeliveryType, subtotal decimal.Decimal) decimal.Decimal {
	if deliveryType != enums.DeliveryTypeDelivery {
		return decimal.Zero
	}
	return store.DeliveryFeeFor(subtotal)
}
