// Package payments collects order payments through the mobile money
// gateway and reconciles the asynchronous outcome back onto orders.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartbite-api/apperror"
	"smartbite-api/campay"
	"smartbite-api/models"
	"smartbite-api/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultClaimTTL must stay longer than the gateway client timeout
const defaultClaimTTL = 2 * time.Minute

type Service struct {
	db       *gorm.DB
	gateway  Gateway
	emitter  notify.Emitter
	currency string
	claimTTL time.Duration
}

func NewService(db *gorm.DB, gateway Gateway, emitter notify.Emitter, currency string) *Service {
	if emitter == nil {
		emitter = notify.Discard{}
	}
	if currency == "" {
		currency = "XAF"
	}
	return &Service{db: db, gateway: gateway, emitter: emitter, currency: currency, claimTTL: defaultClaimTTL}
}

type InitiateResult struct {
	PaymentID       uint                        `json:"paymentId"`
	Status          models.PaymentAttemptStatus `json:"status"`
	GatewayResponse *campay.Transaction         `json:"gatewayResponse"`
}

// WebhookInput is what the gateway posts back once a collection settles
type WebhookInput struct {
	Reference         string `json:"reference" form:"reference"`
	Status            string `json:"status" form:"status"`
	ExternalReference string `json:"external_reference" form:"external_reference"`
	OperatorReference string `json:"operator_reference" form:"operator_reference"`
	Reason            string `json:"reason" form:"reason"`
}

// HistoryEntry is a payment with the restaurant it paid for
type HistoryEntry struct {
	models.Payment
	OrderTotal     string `json:"order_total"`
	RestaurantName string `json:"restaurant_name"`
}

// InitiatePayment submits a collection request for the order total. No
// transaction is open during the gateway call: the order is claimed with a
// conditional update first, so concurrent attempts on one order cannot both
// reach the gateway, and the payment row is written once the gateway answers.
// A gateway failure leaves no payment row behind.
func (s *Service) InitiatePayment(ctx context.Context, orderID, customerID uint, phone string) (*InitiateResult, error) {
	from, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var order models.Order
	err = db.Preload("Restaurant").
		Where("id = ? AND customer_id = ?", orderID, customerID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperror.ErrAlreadyPaid
	}

	claim, err := s.claim(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	req := campay.CollectRequest{
		Amount:            order.Total.StringFixed(0),
		Currency:          s.currency,
		From:              from,
		Description:       fmt.Sprintf("SmartBite Order #%d", order.ID),
		ExternalReference: fmt.Sprintf("SB_%d_%s", order.ID, uuid.NewString()),
	}
	resp, err := s.gateway.Collect(ctx, req)
	if err != nil {
		s.release(ctx, order.ID, claim)
		return nil, gatewayError(err)
	}

	status := models.PaymentPending
	if strings.EqualFold(resp.Status, campay.StatusSuccessful) {
		status = models.PaymentSuccessful
	}
	payment := models.Payment{
		OrderID:           order.ID,
		UserID:            customerID,
		Amount:            order.Total,
		Currency:          s.currency,
		PhoneNumber:       from,
		Method:            "mobile_money",
		Status:            status,
		Reference:         reference(resp.Reference),
		ExternalReference: req.ExternalReference,
		Operator:          resp.Operator,
		OperatorReference: resp.OperatorReference,
		Reason:            resp.Reason,
	}

	// recorded even if the caller has gone away; markPaid is a no-op when
	// another attempt already paid the order
	err = s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if status == models.PaymentSuccessful {
			if err := markPaid(tx, order.ID, payment.ID); err != nil {
				return err
			}
			order.PaymentStatus = models.PaymentStatusPaid
		}
		return releaseClaim(tx, order.ID, claim)
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id":           order.ID,
			"external_reference": req.ExternalReference,
			"reference":          resp.Reference,
		}).Error("Failed to record accepted payment")
		s.release(ctx, order.ID, claim)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"payment_id": payment.ID,
		"status":     payment.Status,
		"operator":   payment.Operator,
	}).Info("Payment initiated")

	s.emit(order, payment)
	return &InitiateResult{PaymentID: payment.ID, Status: payment.Status, GatewayResponse: resp}, nil
}

// claim marks the order as having a collection in flight. A claim expires
// after claimTTL so a crashed attempt cannot block the order forever.
func (s *Service) claim(ctx context.Context, orderID uint) (string, error) {
	token := uuid.NewString()
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ? AND payment_claim_expires < ?",
			orderID, models.PaymentStatusPaid, now.Unix()).
		Updates(map[string]interface{}{
			"payment_claim":         token,
			"payment_claim_expires": now.Add(s.claimTTL).Unix(),
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return token, nil
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Select("payment_status").First(&order, orderID).Error; err != nil {
		return "", err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return "", apperror.ErrAlreadyPaid
	}
	return "", apperror.ErrPaymentInProgress
}

func (s *Service) release(ctx context.Context, orderID uint, token string) {
	if err := releaseClaim(s.db.WithContext(context.WithoutCancel(ctx)), orderID, token); err != nil {
		logrus.WithError(err).WithField("order_id", orderID).Warn("Failed to release payment claim")
	}
}

func releaseClaim(db *gorm.DB, orderID uint, token string) error {
	return db.Model(&models.Order{}).
		Where("id = ? AND payment_claim = ?", orderID, token).
		Updates(map[string]interface{}{
			"payment_claim":         gorm.Expr("NULL"),
			"payment_claim_expires": 0,
		}).Error
}

// Reconcile asks the gateway about the most recent pending attempt that has
// a gateway reference, then returns the latest attempt of the order.
// Gateway failures are logged and the stored view is returned.
func (s *Service) Reconcile(ctx context.Context, orderID uint) (*models.Payment, error) {
	db := s.db.WithContext(ctx)
	var pending models.Payment
	err := db.Where("order_id = ? AND status = ? AND reference IS NOT NULL", orderID, models.PaymentPending).
		Order("created_at desc, id desc").
		First(&pending).Error
	switch {
	case err == nil:
		if err := s.refresh(ctx, &pending); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var latest models.Payment
	err = db.Where("order_id = ?", orderID).
		Order("created_at desc, id desc").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

// PaymentStatus is Reconcile restricted to the customer who paid
func (s *Service) PaymentStatus(ctx context.Context, orderID, customerID uint) (*models.Payment, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND user_id = ?", orderID, customerID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperror.ErrPaymentNotFound
	}
	return s.Reconcile(ctx, orderID)
}

func (s *Service) refresh(ctx context.Context, p *models.Payment) error {
	if p.Status != models.PaymentPending || p.Reference == nil {
		return nil
	}
	remote, err := s.gateway.TransactionStatus(ctx, *p.Reference)
	if err != nil {
		logrus.WithError(err).WithField("payment_id", p.ID).Warn("Payment status check failed")
		return nil
	}
	next := attemptStatus(remote.Status)
	if next == models.PaymentPending {
		return nil
	}
	return s.settle(ctx, p, next, remote.OperatorReference, remote.Reason)
}

// HandleWebhook applies a gateway callback. Unknown references are
// ignored and replays are no-ops, so the gateway can retry freely.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) error {
	q := s.db.WithContext(ctx)
	switch {
	case in.Reference != "":
		q = q.Where("reference = ?", in.Reference)
	case in.ExternalReference != "":
		q = q.Where("external_reference = ?", in.ExternalReference)
	default:
		return nil
	}

	var p models.Payment
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{
				"reference":          in.Reference,
				"external_reference": in.ExternalReference,
			}).Info("Webhook for unknown payment ignored")
			return nil
		}
		return err
	}

	next := models.PaymentFailed
	switch {
	case strings.EqualFold(in.Status, campay.StatusSuccessful):
		next = models.PaymentSuccessful
	case strings.EqualFold(in.Status, campay.StatusPending):
		return nil
	}
	return s.settle(ctx, &p, next, in.OperatorReference, in.Reason)
}

// settle moves a payment out of pending. A successful payment is never
// downgraded and the order is only ever moved towards paid.
func (s *Service) settle(ctx context.Context, p *models.Payment, next models.PaymentAttemptStatus, operatorRef, reason string) error {
	var (
		order   models.Order
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": next}
		if operatorRef != "" {
			updates["operator_reference"] = operatorRef
		}
		if reason != "" {
			updates["reason"] = reason
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ? AND status <> ?", p.ID, models.PaymentSuccessful, next).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		if err := tx.First(p, p.ID).Error; err != nil {
			return err
		}
		if err := tx.Preload("Restaurant").First(&order, p.OrderID).Error; err != nil {
			return err
		}
		if p.Status == models.PaymentSuccessful && order.PaymentStatus != models.PaymentStatusPaid {
			if err := markPaid(tx, order.ID, p.ID); err != nil {
				return err
			}
			order.PaymentStatus = models.PaymentStatusPaid
			changed = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		logrus.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"payment_id": p.ID,
			"status":     p.Status,
		}).Info("Payment settled")
		s.emit(order, *p)
	}
	return nil
}

// History lists a user's payment attempts, newest first
func (s *Service) History(ctx context.Context, userID uint) ([]HistoryEntry, error) {
	var rows []models.Payment
	err := s.db.WithContext(ctx).
		Preload("Order.Restaurant").
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, p := range rows {
		e := HistoryEntry{Payment: p}
		if p.Order != nil {
			e.OrderTotal = p.Order.Total.StringFixed(2)
			if p.Order.Restaurant != nil {
				e.RestaurantName = p.Order.Restaurant.Name
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// markPaid flips the order to paid unless it already is. A second
// successful attempt on a paid order is kept but flagged.
func markPaid(tx *gorm.DB, orderID, paymentID uint) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusPaid).
		Update("payment_status", models.PaymentStatusPaid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		logrus.WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": paymentID,
		}).Warn("Duplicate successful payment for an order already paid")
	}
	return nil
}

func (s *Service) emit(order models.Order, p models.Payment) {
	var ownerID uint
	if order.Restaurant != nil {
		ownerID = order.Restaurant.OwnerID
	}
	status := order.PaymentStatus
	if p.Status == models.PaymentSuccessful {
		status = models.PaymentStatusPaid
	}
	s.emitter.Emit(notify.Event{
		Name: notify.EventPaymentUpdate,
		Payload: notify.PaymentPayload{
			OrderID:       order.ID,
			PaymentID:     p.ID,
			PaymentStatus: status,
		},
		UserIDs: notify.Recipients(order.CustomerID, ownerID),
	})
}

func attemptStatus(remote string) models.PaymentAttemptStatus {
	switch strings.ToUpper(remote) {
	case campay.StatusSuccessful:
		return models.PaymentSuccessful
	case campay.StatusFailed:
		return models.PaymentFailed
	}
	return models.PaymentPending
}

func reference(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

func gatewayError(err error) error {
	var apiErr *campay.APIError
	if errors.As(err, &apiErr) {
		return apperror.ErrGateway.Withf("%s", apiErr.Message).Wrap(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ErrGateway.Withf("payment gateway timed out").Wrap(err)
	}
	return apperror.ErrGateway.Wrap(err)
}
