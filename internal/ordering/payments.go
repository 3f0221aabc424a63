package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/retry"
)

var payeeHandlePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,64}@[a-zA-Z]{2,32}$`)

// PaymentRequest pays an order through the gateway.
type PaymentRequest struct {
	Method      string `json:"method"`
	PayeeHandle string `json:"payeeHandle"`
}

func (r PaymentRequest) Validate() error {
	var c apierr.Check
	c.Require(r.Method == "upi" || r.Method == "card" || r.Method == "netbanking", "method")
	c.Require(r.Method != "upi" || payeeHandlePattern.MatchString(r.PayeeHandle), "payeeHandle")
	return c.Err("missing or invalid payment fields")
}

// PaymentOrder is the gateway order an order is paid against.
type PaymentOrder struct {
	OrderID        uuid.UUID `json:"orderId"`
	PaymentOrderID string    `json:"paymentOrderId"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
}

// CreatePaymentOrder registers the order with the payment gateway. The
// order ID is the idempotency key: an order already registered is returned
// as is, and the lookup is repeated before every retry.
func (s *Service) CreatePaymentOrder(ctx context.Context, tenantID, customerID, orderID uuid.UUID) (*PaymentOrder, error) {
	if s.gateway == nil {
		return nil, apierr.Upstream("payment gateway", errors.New("payments disabled"))
	}
	o, err := s.ownedOrder(ctx, tenantID, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if o.TotalAmount <= 0 {
		return nil, apierr.InvalidInput("order has nothing to pay", "orderId")
	}

	id, err := retry.Run(ctx, s.retry, retry.Idempotent[string]{
		Name: "payment.create_order",
		Key:  orderID.String(),
		Existing: func(ctx context.Context) (string, bool, error) {
			cur, err := s.store.GetOrder(ctx, tenantID, orderID)
			if err != nil {
				return "", false, err
			}
			return cur.PaymentOrderID, cur.PaymentOrderID != "", nil
		},
		Attempt: func(ctx context.Context) (string, error) {
			pid, err := s.gateway.CreateOrder(ctx, o.TotalAmount, o.Currency, orderID.String())
			if err != nil {
				return "", err
			}
			if err := s.store.SetPaymentOrderID(ctx, tenantID, orderID, pid); err != nil {
				return "", err
			}
			return pid, nil
		},
	})
	if err != nil {
		return nil, s.gatewayError(ctx, "create_order", err)
	}
	return &PaymentOrder{OrderID: orderID, PaymentOrderID: id, Amount: o.TotalAmount, Currency: o.Currency}, nil
}

// Pay submits a payment for an order registered with the gateway.
// Payments are not retried: the gateway offers no dedup key for them.
func (s *Service) Pay(ctx context.Context, tenantID, customerID, orderID uuid.UUID, req PaymentRequest) (*domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, apierr.Upstream("payment gateway", errors.New("payments disabled"))
	}
	o, err := s.ownedOrder(ctx, tenantID, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentOrderID == "" {
		return nil, apierr.InvalidInput("create a payment order first", "orderId")
	}

	pid, status, err := s.gateway.CreatePayment(ctx, o.TotalAmount, o.PaymentOrderID, req.Method, strings.TrimSpace(req.PayeeHandle))
	if err != nil {
		return nil, s.gatewayError(ctx, "create_payment", err)
	}
	p := &domain.Payment{
		TenantID:          tenantID,
		OrderID:           orderID,
		ProviderPaymentID: pid,
		Method:            req.Method,
		Amount:            o.TotalAmount,
		Status:            status,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("recording payment %s: %w", pid, err)
	}
	return p, nil
}

// ownedOrder loads an order of the customer. Missing and foreign orders
// are both Forbidden.
func (s *Service) ownedOrder(ctx context.Context, tenantID, customerID, orderID uuid.UUID) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.Forbidden()
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if o.CustomerID != customerID {
		return nil, apierr.Forbidden()
	}
	return o, nil
}

func (s *Service) gatewayError(ctx context.Context, op string, err error) error {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Kind != apierr.KindInternal {
		return err
	}
	s.logger.WarnContext(ctx, "payment gateway call failed",
		slog.String("operation", op),
		slog.Any("error", err),
	)
	return apierr.Upstream("payment gateway", err)
}
