package service

import (
	"fmt"
	"strings"

	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
)

// OrderState the payment and fulfillment axes of an order, checked as one value.
// Valid combinations:
//
//	payment pending/processing/failed  -> fulfillment pending or cancelled
//	payment completed                  -> fulfillment confirmed, processing, shipped or delivered
//
// Manual (cash / pay on delivery) orders may move through any fulfillment state while
// payment is still pending.
type OrderState struct {
	Method      string
	Payment     string
	Fulfillment string
}

// fulfillment forward chain; cancelled sits outside it
var fulfillmentRank = map[string]int{
	constants.OrderStatusPending:    0,
	constants.OrderStatusConfirmed:  1,
	constants.OrderStatusProcessing: 2,
	constants.OrderStatusShipped:    3,
	constants.OrderStatusDelivered:  4,
}

var paymentStatuses = map[string]struct{}{
	constants.PaymentStatusPending:    {},
	constants.PaymentStatusProcessing: {},
	constants.PaymentStatusCompleted:  {},
	constants.PaymentStatusFailed:     {},
}

// StateOf reads the state of a stored order
func StateOf(order *models.Order) OrderState {
	return OrderState{
		Method:      order.PaymentMethod,
		Payment:     order.PaymentStatus,
		Fulfillment: order.Status,
	}
}

// NewOrderState initial state at checkout
func NewOrderState(method string) OrderState {
	return OrderState{
		Method:      method,
		Payment:     constants.PaymentStatusPending,
		Fulfillment: constants.OrderStatusPending,
	}
}

// IsValidFulfillmentStatus known fulfillment value
func IsValidFulfillmentStatus(status string) bool {
	if status == constants.OrderStatusCancelled {
		return true
	}
	_, ok := fulfillmentRank[status]
	return ok
}

// IsValidPaymentStatus known payment value
func IsValidPaymentStatus(status string) bool {
	_, ok := paymentStatuses[status]
	return ok
}

// Valid reports whether the combination is allowed
func (s OrderState) Valid() bool {
	if !IsValidPaymentStatus(s.Payment) || !IsValidFulfillmentStatus(s.Fulfillment) {
		return false
	}
	switch s.Payment {
	case constants.PaymentStatusCompleted:
		rank, ok := fulfillmentRank[s.Fulfillment]
		return ok && rank >= fulfillmentRank[constants.OrderStatusConfirmed]
	case constants.PaymentStatusPending:
		if s.Method == constants.PaymentMethodManual {
			return true
		}
		fallthrough
	default:
		return s.Fulfillment == constants.OrderStatusPending || s.Fulfillment == constants.OrderStatusCancelled
	}
}

// FulfillmentTerminal cancelled and delivered accept no further fulfillment change
func (s OrderState) FulfillmentTerminal() bool {
	return s.Fulfillment == constants.OrderStatusCancelled || s.Fulfillment == constants.OrderStatusDelivered
}

// PaymentTerminal completed and failed only change through an admin override or a new payment attempt
func (s OrderState) PaymentTerminal() bool {
	return s.Payment == constants.PaymentStatusCompleted || s.Payment == constants.PaymentStatusFailed
}

func (s OrderState) String() string {
	return fmt.Sprintf("%s/%s(%s)", s.Payment, s.Fulfillment, s.Method)
}

func (s OrderState) check(from OrderState) (OrderState, error) {
	if !s.Valid() {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, s)
	}
	return s, nil
}

// StartPayment a new gateway attempt; allowed from pending or after a failed attempt
func (s OrderState) StartPayment() (OrderState, error) {
	switch {
	case s.Payment == constants.PaymentStatusCompleted:
		return s, ErrOrderAlreadyPaid
	case s.Fulfillment == constants.OrderStatusCancelled:
		return s, ErrOrderCancelled
	case s.Payment == constants.PaymentStatusProcessing:
		// a fresh prompt replaces the outstanding one
	case s.Payment != constants.PaymentStatusPending && s.Payment != constants.PaymentStatusFailed:
		return s, fmt.Errorf("%w: payment %s", ErrInvalidTransition, s.Payment)
	}
	next := s
	next.Payment = constants.PaymentStatusProcessing
	return next.check(s)
}

// ApplyPaymentResult gateway outcome. changed is false when the payment is already
// terminal, which makes replayed callbacks no-ops. reinstated reports a success that
// arrived after the order had been cancelled; the order returns to confirmed since the
// customer has paid.
func (s OrderState) ApplyPaymentResult(success bool) (next OrderState, changed, reinstated bool, err error) {
	if s.PaymentTerminal() {
		return s, false, false, nil
	}
	next = s
	if !success {
		next.Payment = constants.PaymentStatusFailed
		next, err = next.check(s)
		return next, err == nil, false, err
	}
	next.Payment = constants.PaymentStatusCompleted
	switch s.Fulfillment {
	case constants.OrderStatusPending:
		next.Fulfillment = constants.OrderStatusConfirmed
	case constants.OrderStatusCancelled:
		next.Fulfillment = constants.OrderStatusConfirmed
		reinstated = true
	}
	next, err = next.check(s)
	return next, err == nil, reinstated, err
}

// SetFulfillment admin move along the forward chain or to cancelled
func (s OrderState) SetFulfillment(target string) (OrderState, bool, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if !IsValidFulfillmentStatus(target) {
		return s, false, fmt.Errorf("%w: %s", ErrOrderStatusInvalid, target)
	}
	if target == s.Fulfillment {
		return s, false, nil
	}
	if s.FulfillmentTerminal() {
		return s, false, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, s.Fulfillment)
	}
	if target == constants.OrderStatusCancelled {
		if s.Payment == constants.PaymentStatusCompleted {
			return s, false, ErrOrderPaidCannotCancel
		}
	} else if fulfillmentRank[target] < fulfillmentRank[s.Fulfillment] {
		return s, false, fmt.Errorf("%w: %s cannot go back to %s", ErrInvalidTransition, s.Fulfillment, target)
	}
	next := s
	next.Fulfillment = target
	next, err := next.check(s)
	return next, err == nil, err
}

// SetPayment admin override; a completed payment confirms a pending fulfillment
func (s OrderState) SetPayment(target string) (OrderState, bool, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if !IsValidPaymentStatus(target) {
		return s, false, fmt.Errorf("%w: %s", ErrPaymentStatusInvalid, target)
	}
	if target == s.Payment {
		return s, false, nil
	}
	next := s
	next.Payment = target
	if target == constants.PaymentStatusCompleted && s.Fulfillment == constants.OrderStatusPending {
		next.Fulfillment = constants.OrderStatusConfirmed
	}
	next, err := next.check(s)
	return next, err == nil, err
}
