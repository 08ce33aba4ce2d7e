package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/streambox/internal/app/auth"
	"github.com/fatflowers/streambox/internal/app/service/catalog"
	"github.com/fatflowers/streambox/internal/app/service/events"
	"github.com/fatflowers/streambox/internal/app/service/events/eventstest"
	"github.com/fatflowers/streambox/internal/app/service/gateway"
	"github.com/fatflowers/streambox/internal/app/service/payment_log"
	"github.com/fatflowers/streambox/internal/app/service/pricing"
	"github.com/fatflowers/streambox/internal/models"
	"github.com/fatflowers/streambox/internal/platform/db/dbtest"
	"github.com/fatflowers/streambox/internal/platform/razorpay"
	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/types"
)

const testKeySecret = "test_secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Each read moves forward so created_at orders the way writes happened.
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	events *eventstest.Recorder
	clock  *clock
	plans  map[string]*models.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.New(t)
	log := zap.NewNop().Sugar()

	cat := catalog.NewService(gdb, log)
	_, err := cat.Seed(context.Background(), catalog.DefaultPlans())
	require.NoError(t, err)

	rp, err := gateway.NewRazorpay(gateway.RazorpayOptions{KeySecret: testKeySecret, Sandbox: true}, nil, log)
	require.NoError(t, err)

	cfg := &config.Config{Eligibility: config.EligibilityConfig{StudentEmailSuffixes: []string{".edu", ".ac.in"}}}
	rec := &eventstest.Recorder{}
	svc := NewService(cfg, gdb, log, cat, pricing.NewCalculator(pricing.DefaultPolicy()),
		gateway.NewRegistry(rp), payment_log.New(gdb, log), rec, nil)

	clk := &clock{now: time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)}
	svc.now = clk.Now

	var plans []*models.Plan
	require.NoError(t, gdb.Find(&plans).Error)
	byName := make(map[string]*models.Plan, len(plans))
	for _, p := range plans {
		byName[p.Name] = p
	}
	return &fixture{svc: svc, db: gdb, events: rec, clock: clk, plans: byName}
}

func user(id string) *auth.Caller {
	return &auth.Caller{ID: id, Role: types.UserRoleUser, Email: id + "@example.com"}
}

func (f *fixture) order(t *testing.T, caller *auth.Caller, plan, cycle string) string {
	t.Helper()
	h, err := f.svc.CreateOrder(context.Background(), caller, &CreateOrderRequest{PlanID: f.plans[plan].ID, BillingCycle: cycle})
	require.NoError(t, err)
	return h.OrderID
}

func (f *fixture) verify(t *testing.T, caller *auth.Caller, plan, cycle, paymentID string) *models.Subscription {
	t.Helper()
	orderID := f.order(t, caller, plan, cycle)
	sub, err := f.svc.VerifyAndActivate(context.Background(), caller, &VerifyRequest{
		OrderID:      orderID,
		PaymentID:    paymentID,
		Signature:    razorpay.PaymentSignature(testKeySecret, orderID, paymentID),
		PlanID:       f.plans[plan].ID,
		BillingCycle: cycle,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("id = ?", id).First(&u).Error)
	return &u
}

func TestCreateOrder_Amounts(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		plan  string
		cycle string
		want  int64
	}{
		{plan: "standard", cycle: "monthly", want: 24900},
		{plan: "standard", cycle: "", want: 24900},
		{plan: "standard", cycle: "yearly", want: 239040},
		{plan: "annual-standard", cycle: "yearly", want: 959040},
		{plan: "basic", cycle: "monthly", want: 9900},
	}
	for _, tt := range tests {
		t.Run(tt.plan+"_"+tt.cycle, func(t *testing.T) {
			h, err := f.svc.CreateOrder(context.Background(), user("u1"), &CreateOrderRequest{
				PlanID:       f.plans[tt.plan].ID,
				BillingCycle: tt.cycle,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Amount)
			assert.Equal(t, "INR", h.Currency)
			assert.NotEmpty(t, h.OrderID)
			assert.Equal(t, tt.plan, h.Plan.Name)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count, "creating an order must not persist a subscription")
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Model(&models.Plan{}).Where("id = ?", f.plans["premium"].ID).Update("is_active", false).Error)

	tests := []struct {
		name   string
		caller *auth.Caller
		req    *CreateOrderRequest
		kind   apperr.Kind
	}{
		{name: "anonymous", caller: nil, req: &CreateOrderRequest{PlanID: f.plans["basic"].ID}, kind: apperr.KindUnauthorized},
		{name: "unknown plan", caller: user("u1"), req: &CreateOrderRequest{PlanID: "0190d6b4-0000-7000-8000-000000000000"}, kind: apperr.KindNotFound},
		{name: "bad cycle", caller: user("u1"), req: &CreateOrderRequest{PlanID: f.plans["basic"].ID, BillingCycle: "weekly"}, kind: apperr.KindValidation},
		{name: "inactive plan", caller: user("u1"), req: &CreateOrderRequest{PlanID: f.plans["premium"].ID}, kind: apperr.KindValidation},
		{name: "unknown method", caller: user("u1"), req: &CreateOrderRequest{PlanID: f.plans["basic"].ID, PaymentMethod: "cash"}, kind: apperr.KindValidation},
		{name: "disabled method", caller: user("u1"), req: &CreateOrderRequest{PlanID: f.plans["basic"].ID, PaymentMethod: types.PaymentMethodStripe}, kind: apperr.KindValidation},
		{name: "student gate", caller: user("u1"), req: &CreateOrderRequest{PlanID: f.plans["student"].ID}, kind: apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, tt.caller, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	student := &auth.Caller{ID: "s1", Role: types.UserRoleUser, Email: "Ravi@IITB.ac.in"}
	h, err := f.svc.CreateOrder(ctx, student, &CreateOrderRequest{PlanID: f.plans["student"].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(5900), h.Amount)
}

func TestVerifyAndActivate(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)
	f.clock.Set(start)

	sub := f.verify(t, user("u1"), "standard", "monthly", "pay_1")

	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, sub.StartDate.AddDate(0, 1, 0), sub.EndDate)
	assert.Equal(t, time.March, sub.EndDate.Month(), "Jan 31 + 1 month normalizes into March")
	assert.True(t, sub.Amount.Equal(f.plans["standard"].Price))
	assert.True(t, sub.AutoRenewal)
	assert.Equal(t, "pay_1", sub.PaymentID)
	require.NotNil(t, sub.Plan)

	u := f.user(t, "u1")
	assert.Equal(t, types.UserSubscriptionStatusActive, u.Subscription.Status)
	require.NotNil(t, u.Subscription.CurrentPlanID)
	assert.Equal(t, f.plans["standard"].ID, *u.Subscription.CurrentPlanID)
	require.NotNil(t, u.Subscription.ExpiryDate)
	assert.True(t, u.Subscription.ExpiryDate.Equal(sub.EndDate))
	assert.True(t, u.Subscription.AutoRenewal)
	require.NotNil(t, u.PaymentCustomerID)
	assert.Equal(t, "pay_1", *u.PaymentCustomerID)

	var logs []*models.SubscriptionLog
	require.NoError(t, f.db.Where("subscription_id = ?", sub.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, types.SubscriptionChangeReasonPurchase, logs[0].Reason)
	assert.Nil(t, logs[0].Before.Data())

	var plogs []*models.PaymentLog
	require.NoError(t, f.db.Where("payment_id = ?", "pay_1").Find(&plogs).Error)
	require.Len(t, plogs, 1)
	assert.Equal(t, models.PaymentLogStatusHandled, plogs[0].Status)

	assert.Eventually(t, func() bool {
		return len(f.events.Keys()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{events.RoutingKeyActivated}, f.events.Keys())
}

func TestVerifyAndActivate_Yearly(t *testing.T) {
	f := newFixture(t)
	sub := f.verify(t, user("u1"), "annual-standard", "yearly", "pay_y")
	assert.Equal(t, sub.StartDate.AddDate(1, 0, 0), sub.EndDate)
	assert.Equal(t, "9590.4", sub.Amount.String())
}

func TestVerifyAndActivate_InvalidSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyAndActivate(context.Background(), user("u1"), &VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: razorpay.PaymentSignature("wrong_secret", "order_1", "pay_1"),
		PlanID:    f.plans["standard"].ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidSignature, apperr.KindOf(err))

	var subs, users int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&subs).Error)
	require.NoError(t, f.db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, subs)
	assert.Zero(t, users)

	var plogs []*models.PaymentLog
	require.NoError(t, f.db.Where("payment_id = ?", "pay_1").Find(&plogs).Error)
	require.Len(t, plogs, 1)
	assert.Equal(t, models.PaymentLogStatusHandleFailed, plogs[0].Status)
}

func TestVerifyAndActivate_DeletedPlan(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Delete(f.plans["premium"]).Error)

	_, err := f.svc.VerifyAndActivate(context.Background(), user("u1"), &VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: razorpay.PaymentSignature(testKeySecret, "order_1", "pay_1"),
		PlanID:    f.plans["premium"].ID,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifyAndActivate_DuplicatePayment(t *testing.T) {
	f := newFixture(t)
	first := f.verify(t, user("u1"), "standard", "monthly", "pay_dup")

	// The same callback delivered twice answers with the same subscription.
	again := f.verify(t, user("u1"), "standard", "monthly", "pay_dup")
	assert.Equal(t, first.ID, again.ID)

	premium := f.order(t, user("u1"), "premium", "monthly")
	_, err := f.svc.VerifyAndActivate(context.Background(), user("u1"), &VerifyRequest{
		OrderID:   premium,
		PaymentID: "pay_dup",
		Signature: razorpay.PaymentSignature(testKeySecret, premium, "pay_dup"),
		PlanID:    f.plans["premium"].ID,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	var subs int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&subs).Error)
	assert.Equal(t, int64(1), subs)

	cur, err := f.svc.GetCurrent(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, cur.Subscription.ID)
}

func TestVerifyAndActivate_OrderMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	basic := f.order(t, user("u1"), "basic", "monthly")

	tests := []struct {
		name   string
		caller *auth.Caller
		plan   string
		cycle  string
	}{
		{"other plan and cycle", user("u1"), "annual-standard", "yearly"},
		{"other plan", user("u1"), "premium", "monthly"},
		{"other cycle", user("u1"), "basic", "yearly"},
		{"other user", user("u2"), "basic", "monthly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.VerifyAndActivate(ctx, tt.caller, &VerifyRequest{
				OrderID:      basic,
				PaymentID:    "pay_basic",
				Signature:    razorpay.PaymentSignature(testKeySecret, basic, "pay_basic"),
				PlanID:       f.plans[tt.plan].ID,
				BillingCycle: tt.cycle,
			})
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	var subs, users int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&subs).Error)
	require.NoError(t, f.db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, subs)
	assert.Zero(t, users)

	sub := f.verify(t, user("u1"), "basic", "monthly", "pay_basic")
	assert.Equal(t, f.plans["basic"].ID, sub.PlanID)
}

func TestVerifyAndActivate_AfterWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.order(t, user("u1"), "standard", "monthly")

	hooked, err := f.svc.Activate(ctx, &ActivateInput{
		UserID:       "u1",
		PlanID:       f.plans["standard"].ID,
		BillingCycle: types.BillingCycleMonthly,
		OrderID:      orderID,
		PaymentID:    "pay_1",
		Reason:       types.SubscriptionChangeReasonWebhook,
		Actor:        "webhook",
	})
	require.NoError(t, err)

	req := &VerifyRequest{
		OrderID:      orderID,
		PaymentID:    "pay_1",
		Signature:    razorpay.PaymentSignature(testKeySecret, orderID, "pay_1"),
		PlanID:       f.plans["standard"].ID,
		BillingCycle: "monthly",
	}
	sub, err := f.svc.VerifyAndActivate(ctx, user("u1"), req)
	require.NoError(t, err)
	assert.Equal(t, hooked.ID, sub.ID)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.Plan)
	assert.Equal(t, "standard", sub.Plan.Name)

	var subs int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&subs).Error)
	assert.Equal(t, int64(1), subs)

	// Another user replaying the payment is still refused.
	otherOrder := f.order(t, user("u2"), "standard", "monthly")
	_, err = f.svc.VerifyAndActivate(ctx, user("u2"), &VerifyRequest{
		OrderID:      otherOrder,
		PaymentID:    "pay_1",
		Signature:    razorpay.PaymentSignature(testKeySecret, otherOrder, "pay_1"),
		PlanID:       f.plans["standard"].ID,
		BillingCycle: "monthly",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestVerifyAndActivate_SupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	first := f.verify(t, user("u1"), "basic", "monthly", "pay_a")
	second := f.verify(t, user("u1"), "premium", "monthly", "pay_b")

	var old models.Subscription
	require.NoError(t, f.db.Where("id = ?", first.ID).First(&old).Error)
	assert.Equal(t, types.SubscriptionStatusExpired, old.Status)
	assert.False(t, old.AutoRenewal)

	var live int64
	require.NoError(t, f.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", "u1", types.LiveSubscriptionStatuses).Count(&live).Error)
	assert.Equal(t, int64(1), live)

	cur, err := f.svc.GetCurrent(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.Subscription.ID)
	assert.Equal(t, "premium", cur.Subscription.Plan.Name)

	var reasons []types.SubscriptionChangeReason
	require.NoError(t, f.db.Model(&models.SubscriptionLog{}).Where("subscription_id = ?", first.ID).
		Order("created_at asc").Pluck("reason", &reasons).Error)
	assert.Equal(t, []types.SubscriptionChangeReason{types.SubscriptionChangeReasonPurchase, types.SubscriptionChangeReasonSuperseded}, reasons)
}

func TestVerifyAndActivate_ConcurrentForSameUser(t *testing.T) {
	f := newFixture(t)
	orderID := f.order(t, user("u1"), "basic", "monthly")
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paymentID := "pay_c" + string(rune('0'+i))
			_, errs[i] = f.svc.VerifyAndActivate(context.Background(), user("u1"), &VerifyRequest{
				OrderID:   orderID,
				PaymentID: paymentID,
				Signature: razorpay.PaymentSignature(testKeySecret, orderID, paymentID),
				PlanID:    f.plans["basic"].ID,
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var live int64
	require.NoError(t, f.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", "u1", types.LiveSubscriptionStatuses).Count(&live).Error)
	assert.Equal(t, int64(1), live)
}

func TestGetCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cur, err := f.svc.GetCurrent(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "free", cur.Status)
	assert.Nil(t, cur.Subscription)

	sub := f.verify(t, user("u1"), "standard", "monthly", "pay_1")
	cur, err = f.svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "active", cur.Status)

	f.clock.Set(sub.EndDate.Add(time.Second))
	cur, err = f.svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "expired", cur.Status, "elapsed live subscription reports expired before the sweep")
	assert.Equal(t, sub.ID, cur.Subscription.ID)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	a := f.verify(t, user("u1"), "basic", "monthly", "pay_a")
	b := f.verify(t, user("u1"), "standard", "monthly", "pay_b")
	f.verify(t, user("u2"), "standard", "monthly", "pay_other")

	require.NoError(t, f.db.Delete(f.plans["basic"]).Error)

	subs, err := f.svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, b.ID, subs[0].ID)
	assert.Equal(t, a.ID, subs[1].ID)
	require.NotNil(t, subs[1].Plan, "deleted plans still resolve in history")
	assert.Equal(t, "basic", subs[1].Plan.Name)

	empty, err := f.svc.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCancelAndReactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("u1")

	_, err := f.svc.Cancel(ctx, caller)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "nothing to cancel")

	sub := f.verify(t, caller, "standard", "monthly", "pay_1")

	_, err = f.svc.Reactivate(ctx, caller)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "active subscription cannot be reactivated")

	cancelled, err := f.svc.Cancel(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.AutoRenewal)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "u1", *cancelled.CancelledBy)
	assert.True(t, cancelled.EndDate.Equal(sub.EndDate), "cancel keeps the paid period")

	u := f.user(t, "u1")
	assert.Equal(t, types.UserSubscriptionStatusCancelled, u.Subscription.Status)
	assert.False(t, u.Subscription.AutoRenewal)

	cur, err := f.svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, string(u.Subscription.Status), cur.Status, "current view agrees with the user record")
	require.NotNil(t, cur.Subscription)
	assert.Equal(t, sub.ID, cur.Subscription.ID)

	_, err = f.svc.Cancel(ctx, caller)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "second cancel fails")

	reactivated, err := f.svc.Reactivate(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, reactivated.Status)
	assert.True(t, reactivated.AutoRenewal)
	assert.Nil(t, reactivated.CancelledAt)

	u = f.user(t, "u1")
	assert.Equal(t, types.UserSubscriptionStatusActive, u.Subscription.Status)
	assert.True(t, u.Subscription.AutoRenewal)

	assert.Eventually(t, func() bool {
		return len(f.events.Keys()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{events.RoutingKeyActivated, events.RoutingKeyCancelled, events.RoutingKeyReactivated}, f.events.Keys())
}

func TestReactivate_ElapsedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.verify(t, user("u1"), "standard", "monthly", "pay_1")
	_, err := f.svc.Cancel(ctx, user("u1"))
	require.NoError(t, err)

	f.clock.Set(sub.EndDate.Add(time.Hour))
	_, err = f.svc.Reactivate(ctx, user("u1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cur, err := f.svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "free", cur.Status, "cancelled subscription past its period no longer counts")
	assert.Nil(t, cur.Subscription)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := f.verify(t, user("u1"), "basic", "monthly", "pay_1")
	f.clock.Set(due.StartDate.Add(20 * 24 * time.Hour))
	notDue := f.verify(t, user("u2"), "basic", "monthly", "pay_2")

	sweepAt := due.EndDate.Add(time.Minute)
	n, err := f.svc.ExpireDue(ctx, sweepAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var expired, live models.Subscription
	require.NoError(t, f.db.Where("id = ?", due.ID).First(&expired).Error)
	assert.Equal(t, types.SubscriptionStatusExpired, expired.Status)
	require.NoError(t, f.db.Where("id = ?", notDue.ID).First(&live).Error)
	assert.Equal(t, types.SubscriptionStatusActive, live.Status)

	u := f.user(t, "u1")
	assert.Equal(t, types.UserSubscriptionStatusExpired, u.Subscription.Status)
	assert.False(t, u.Subscription.AutoRenewal)

	n, err = f.svc.ExpireDue(ctx, sweepAt)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep is idempotent")

	cur, err := f.svc.GetCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "free", cur.Status)
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verify(t, user("u1"), "basic", "monthly", "pay_1")
	f.verify(t, user("u2"), "standard", "monthly", "pay_2")
	f.verify(t, user("u3"), "standard", "yearly", "pay_3")

	admin := &auth.Caller{ID: "admin", Role: types.UserRoleAdmin}

	_, err := f.svc.Scan(ctx, user("u1"), &ScanRequest{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Scan(ctx, admin, &ScanRequest{Filters: []*types.CommonFilter{{Field: "amount; drop table plan", Operator: types.CommonFilterOperatorEq, Values: []any{1}}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Scan(ctx, admin, &ScanRequest{SortBy: "user_id"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	resp, err := f.svc.Scan(ctx, admin, &ScanRequest{
		Filters: []*types.CommonFilter{{Field: "plan_id", Operator: types.CommonFilterOperatorEq, Values: []any{f.plans["standard"].ID}}},
		Size:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "u3", resp.Items[0].UserID)
	assert.Equal(t, "standard", resp.Items[0].Plan.Name)
}

func TestSnapshotDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.verify(t, user("u1"), "basic", "monthly", "pay_1")
	day := sub.StartDate.Add(time.Hour)

	n, err := f.svc.SnapshotDaily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.SnapshotDaily(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, n)

	var rows []*models.SubscriptionDailySnapshot
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, day.Format(time.DateOnly), rows[0].SnapshotDate)
}
