package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"smartbite-api/apperror"
	"smartbite-api/campay"
	"smartbite-api/models"
	"smartbite-api/notify"
	"smartbite-api/testdb"

	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingEmitter) Emit(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	db         *gorm.DB
	gateway    *MockGateway
	emitter    *recordingEmitter
	svc        *Service
	customer   models.User
	restaurant models.Restaurant
	order      models.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testdb.Open(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	r, _ := testdb.Restaurant(t, db)
	customer := testdb.User(t, db, models.RoleCustomer)
	gw := NewMockGateway(ctrl)
	em := &recordingEmitter{}
	return &fixture{
		db:         db,
		gateway:    gw,
		emitter:    em,
		svc:        NewService(db, gw, em, "XAF"),
		customer:   customer,
		restaurant: r,
		order:      testdb.Order(t, db, customer.ID, r.ID, models.StatusPending, 3000),
	}
}

func (f *fixture) reload(t *testing.T) models.Order {
	t.Helper()
	var o models.Order
	if err := f.db.First(&o, f.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return o
}

func (f *fixture) payments(t *testing.T) []models.Payment {
	t.Helper()
	var ps []models.Payment
	f.db.Where("order_id = ?", f.order.ID).Order("id asc").Find(&ps)
	return ps
}

func (f *fixture) pendingAttempt(t *testing.T, ref string) *InitiateResult {
	t.Helper()
	f.gateway.EXPECT().Collect(gomock.Any(), gomock.Any()).
		Return(&campay.Transaction{Reference: ref, Status: campay.StatusPending, Operator: "MTN"}, nil)
	res, err := f.svc.InitiatePayment(context.Background(), f.order.ID, f.customer.ID, "677123456")
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	return res
}

func TestInitiatePaymentSuccessfulMarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.EXPECT().Collect(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req campay.CollectRequest) (*campay.Transaction, error) {
			if req.Amount != "3000" || req.Currency != "XAF" || req.From != "237677123456" {
				t.Errorf("unexpected collect request %+v", req)
			}
			if !strings.HasPrefix(req.ExternalReference, "SB_") || req.Description == "" {
				t.Errorf("unexpected references %+v", req)
			}
			return &campay.Transaction{Reference: "ref-ok", Status: campay.StatusSuccessful, Operator: "MTN"}, nil
		}).Times(1)

	res, err := f.svc.InitiatePayment(ctx, f.order.ID, f.customer.ID, "+237 677 12 34 56")
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if res.Status != models.PaymentSuccessful || res.GatewayResponse.Reference != "ref-ok" {
		t.Fatalf("unexpected result %+v", res)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}
	ps := f.payments(t)
	if len(ps) != 1 || ps[0].Status != models.PaymentSuccessful || ps[0].Reference == nil || *ps[0].Reference != "ref-ok" {
		t.Fatalf("unexpected payments %+v", ps)
	}
	if !ps[0].Amount.Equal(f.order.Total) {
		t.Fatalf("amount = %s, want %s", ps[0].Amount, f.order.Total)
	}

	// second attempt on a paid order never reaches the gateway
	if _, err := f.svc.InitiatePayment(ctx, f.order.ID, f.customer.ID, "677123456"); !errors.Is(err, apperror.ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	if n := len(f.payments(t)); n != 1 {
		t.Fatalf("got %d payments, want 1", n)
	}

	if f.emitter.count() != 1 {
		t.Fatalf("got %d events, want 1", f.emitter.count())
	}
	p := f.emitter.events[0].Payload.(notify.PaymentPayload)
	if p.PaymentStatus != models.PaymentStatusPaid || p.OrderID != f.order.ID {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestInitiatePaymentGatewayErrorLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.gateway.EXPECT().Collect(gomock.Any(), gomock.Any()).
		Return(nil, &campay.APIError{StatusCode: 400, Message: "Insufficient balance"})

	_, err := f.svc.InitiatePayment(context.Background(), f.order.ID, f.customer.ID, "677123456")
	if !errors.Is(err, apperror.ErrGateway) {
		t.Fatalf("err = %v, want ErrGateway", err)
	}
	if msg := apperror.As(err).Message; msg != "Insufficient balance" {
		t.Fatalf("message = %q, want upstream message", msg)
	}
	if n := len(f.payments(t)); n != 0 {
		t.Fatalf("got %d payments, want none", n)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("payment_status = %s", o.PaymentStatus)
	}
	if f.emitter.count() != 0 {
		t.Fatal("no event expected for a failed submission")
	}

	// the order is free for a retry
	if o := f.reload(t); o.PaymentClaim != nil || o.PaymentClaimExpires != 0 {
		t.Fatalf("claim not released: %v/%d", o.PaymentClaim, o.PaymentClaimExpires)
	}
	f.pendingAttempt(t, "ref-retry")
	if n := len(f.payments(t)); n != 1 {
		t.Fatalf("got %d payments, want 1", n)
	}
}

func TestInitiatePaymentConcurrentAttempts(t *testing.T) {
	f := newFixtureOn(t, testdb.OpenPool(t, 4))
	ctx := context.Background()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.gateway.EXPECT().Collect(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, campay.CollectRequest) (*campay.Transaction, error) {
			close(entered)
			<-proceed
			return &campay.Transaction{Reference: "ref-slow", Status: campay.StatusPending}, nil
		}).Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.InitiatePayment(ctx, f.order.ID, f.customer.ID, "677123456")
		done <- err
	}()
	<-entered

	// the store stays writable while the gateway is working
	err := f.db.Model(&models.Restaurant{}).
		Where("id = ?", f.restaurant.ID).
		Update("name", "Renamed").Error
	if err != nil {
		t.Fatalf("unrelated write during gateway call: %v", err)
	}

	_, err = f.svc.InitiatePayment(ctx, f.order.ID, f.customer.ID, "677123456")
	if !errors.Is(err, apperror.ErrPaymentInProgress) {
		t.Fatalf("err = %v, want ErrPaymentInProgress", err)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	ps := f.payments(t)
	if len(ps) != 1 || ps[0].Reference == nil || *ps[0].Reference != "ref-slow" {
		t.Fatalf("unexpected payments %+v", ps)
	}
	if o := f.reload(t); o.PaymentClaim != nil {
		t.Fatal("claim not released after the attempt was recorded")
	}

	f.pendingAttempt(t, "ref-next")
	if n := len(f.payments(t)); n != 2 {
		t.Fatalf("got %d payments, want 2", n)
	}
}

func TestInitiatePaymentClaimExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold := func(expires time.Time) {
		t.Helper()
		err := f.db.Model(&models.Order{}).Where("id = ?", f.order.ID).
			Updates(map[string]interface{}{
				"payment_claim":         "other-attempt",
				"payment_claim_expires": expires.Unix(),
			}).Error
		if err != nil {
			t.Fatalf("hold claim: %v", err)
		}
	}

	// live claim: never reaches the gateway
	hold(time.Now().Add(time.Minute))
	if _, err := f.svc.InitiatePayment(ctx, f.order.ID, f.customer.ID, "677123456"); !errors.Is(err, apperror.ErrPaymentInProgress) {
		t.Fatalf("err = %v, want ErrPaymentInProgress", err)
	}

	// abandoned claim is taken over
	hold(time.Now().Add(-time.Minute))
	f.pendingAttempt(t, "ref-after-crash")
	if o := f.reload(t); o.PaymentClaim != nil {
		t.Fatal("claim not released")
	}
}

func TestInitiatePaymentPreconditions(t *testing.T) {
	f := newFixture(t)
	stranger := testdb.User(t, f.db, models.RoleCustomer)

	// no gateway expectations: none of these may reach it
	if _, err := f.svc.InitiatePayment(context.Background(), f.order.ID, stranger.ID, "677123456"); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
	if _, err := f.svc.InitiatePayment(context.Background(), f.order.ID, f.customer.ID, "12345"); !errors.Is(err, apperror.ErrInvalidPhone) {
		t.Fatalf("err = %v, want ErrInvalidPhone", err)
	}
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pendingAttempt(t, "ref-1")

	// unchanged remote status is a no-op
	f.gateway.EXPECT().TransactionStatus(gomock.Any(), "ref-1").
		Return(&campay.Transaction{Reference: "ref-1", Status: campay.StatusPending}, nil)
	p, err := f.svc.Reconcile(ctx, f.order.ID)
	if err != nil || p.Status != models.PaymentPending {
		t.Fatalf("Reconcile() = %+v, %v", p, err)
	}

	// gateway trouble is swallowed
	f.gateway.EXPECT().TransactionStatus(gomock.Any(), "ref-1").Return(nil, errors.New("connection reset"))
	p, err = f.svc.Reconcile(ctx, f.order.ID)
	if err != nil || p.Status != models.PaymentPending {
		t.Fatalf("Reconcile() = %+v, %v", p, err)
	}

	f.gateway.EXPECT().TransactionStatus(gomock.Any(), "ref-1").
		Return(&campay.Transaction{Reference: "ref-1", Status: campay.StatusSuccessful, OperatorReference: "MP42"}, nil)
	p, err = f.svc.Reconcile(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if p.Status != models.PaymentSuccessful || p.OperatorReference != "MP42" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}

	// settled payments are not queried again
	p, err = f.svc.PaymentStatus(ctx, f.order.ID, f.customer.ID)
	if err != nil || p.Status != models.PaymentSuccessful {
		t.Fatalf("PaymentStatus() = %+v, %v", p, err)
	}
}

func TestReconcileRefreshesOlderPendingAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.pendingAttempt(t, "ref-1")
	second := f.pendingAttempt(t, "ref-2")

	if err := f.svc.HandleWebhook(ctx, WebhookInput{Reference: "ref-2", Status: "FAILED"}); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	f.gateway.EXPECT().TransactionStatus(gomock.Any(), "ref-1").
		Return(&campay.Transaction{Reference: "ref-1", Status: campay.StatusSuccessful}, nil).Times(1)
	p, err := f.svc.PaymentStatus(ctx, f.order.ID, f.customer.ID)
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	// the view is still the latest attempt
	if p.ID != second.PaymentID || p.Status != models.PaymentFailed {
		t.Fatalf("view = %d/%s, want %d/failed", p.ID, p.Status, second.PaymentID)
	}
	var refreshed models.Payment
	f.db.First(&refreshed, first.PaymentID)
	if refreshed.Status != models.PaymentSuccessful {
		t.Fatalf("older attempt = %s, want successful", refreshed.Status)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}
}

func TestPaymentStatusChecksOwnership(t *testing.T) {
	f := newFixture(t)
	f.pendingAttempt(t, "ref-2")
	stranger := testdb.User(t, f.db, models.RoleCustomer)
	if _, err := f.svc.PaymentStatus(context.Background(), f.order.ID, stranger.ID); !errors.Is(err, apperror.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
	if _, err := f.svc.Reconcile(context.Background(), 999); !errors.Is(err, apperror.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestWebhookIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.pendingAttempt(t, "ref-3")
	before := f.emitter.count()

	hook := WebhookInput{Reference: "ref-3", Status: "SUCCESSFUL", ExternalReference: "SB_x"}
	for i := 0; i < 3; i++ {
		if err := f.svc.HandleWebhook(ctx, hook); err != nil {
			t.Fatalf("HandleWebhook #%d: %v", i, err)
		}
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}
	if got := f.emitter.count() - before; got != 1 {
		t.Fatalf("replays emitted %d events, want 1", got)
	}

	// a late failure does not downgrade a successful payment
	if err := f.svc.HandleWebhook(ctx, WebhookInput{Reference: "ref-3", Status: "FAILED"}); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	var p models.Payment
	f.db.First(&p, res.PaymentID)
	if p.Status != models.PaymentSuccessful {
		t.Fatalf("status = %s, want successful", p.Status)
	}
}

func TestWebhookUnknownReferenceIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, in := range []WebhookInput{
		{Reference: "nope", Status: "SUCCESSFUL"},
		{ExternalReference: "SB_0_nope", Status: "SUCCESSFUL"},
		{Status: "SUCCESSFUL"},
	} {
		if err := f.svc.HandleWebhook(ctx, in); err != nil {
			t.Fatalf("HandleWebhook(%+v): %v", in, err)
		}
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("payment_status = %s", o.PaymentStatus)
	}
}

func TestFailedAttemptNeverRevertsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pendingAttempt(t, "ref-a")
	f.pendingAttempt(t, "ref-b")

	if err := f.svc.HandleWebhook(ctx, WebhookInput{Reference: "ref-a", Status: "SUCCESSFUL"}); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if err := f.svc.HandleWebhook(ctx, WebhookInput{Reference: "ref-b", Status: "FAILED", Reason: "timeout"}); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}
	ps := f.payments(t)
	if ps[0].Status != models.PaymentSuccessful || ps[1].Status != models.PaymentFailed || ps[1].Reason != "timeout" {
		t.Fatalf("unexpected payments %+v", ps)
	}

	// nothing is pending, so reconcile has nothing to ask
	p, err := f.svc.Reconcile(ctx, f.order.ID)
	if err != nil || p.Status != models.PaymentFailed {
		t.Fatalf("Reconcile() = %+v, %v", p, err)
	}
	if o := f.reload(t); o.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment_status = %s, want paid", o.PaymentStatus)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.pendingAttempt(t, "ref-h1")
	f.pendingAttempt(t, "ref-h2")

	entries, err := f.svc.History(context.Background(), f.customer.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if *entries[0].Reference != "ref-h2" {
		t.Fatalf("newest first expected, got %s", *entries[0].Reference)
	}
	if entries[0].RestaurantName == "" || entries[0].OrderTotal != "3000.00" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}

	other := testdb.User(t, f.db, models.RoleCustomer)
	if entries, _ := f.svc.History(context.Background(), other.ID); len(entries) != 0 {
		t.Fatalf("history leaked %d entries", len(entries))
	}
}
