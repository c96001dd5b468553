package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
	"github.com/dujiao-next/lunar-gateway/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeOperationCall struct {
	Action   string
	IntentID string
	Amount   lunar.Amount
}

// fakeProcessor 可编排的远端处理方
type fakeProcessor struct {
	mu sync.Mutex

	intentID      string
	createErr     error
	transaction   *lunar.Transaction
	fetchErr      error
	operationErr  error
	operationFunc func(action string, amount lunar.Amount) *lunar.OperationResult

	createRequests []*lunar.IntentRequest
	fetchCalls     int
	operations     []fakeOperationCall
	testModes      []bool
}

func (p *fakeProcessor) factory() ProcessorClientFactory {
	return func(cfg *lunar.Config, testMode bool) (RemoteProcessorClient, error) {
		if cfg == nil {
			return nil, errors.New("config is nil")
		}
		p.mu.Lock()
		p.testModes = append(p.testModes, testMode)
		p.mu.Unlock()
		return p, nil
	}
}

func (p *fakeProcessor) CreateIntent(_ context.Context, req *lunar.IntentRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createRequests = append(p.createRequests, req)
	if p.createErr != nil {
		return "", p.createErr
	}
	return p.intentID, nil
}

func (p *fakeProcessor) FetchIntent(_ context.Context, intentID string) (*lunar.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	if p.transaction == nil {
		return nil, &lunar.APIError{StatusCode: 404, Message: "Not found"}
	}
	tx := *p.transaction
	tx.ID = intentID
	return &tx, nil
}

func (p *fakeProcessor) Capture(_ context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error) {
	return p.operate("capture", intentID, amount)
}

func (p *fakeProcessor) Cancel(_ context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error) {
	return p.operate("cancel", intentID, amount)
}

func (p *fakeProcessor) Refund(_ context.Context, intentID string, amount lunar.Amount) (*lunar.OperationResult, error) {
	return p.operate("refund", intentID, amount)
}

func (p *fakeProcessor) operate(action, intentID string, amount lunar.Amount) (*lunar.OperationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operations = append(p.operations, fakeOperationCall{Action: action, IntentID: intentID, Amount: amount})
	if p.operationErr != nil {
		return nil, p.operationErr
	}
	if p.operationFunc != nil {
		return p.operationFunc(action, amount), nil
	}
	return &lunar.OperationResult{State: lunar.StateCompleted}, nil
}

func (p *fakeProcessor) operationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.operations)
}

func authorizedTransaction(currency, amount string) *lunar.Transaction {
	return &lunar.Transaction{
		AuthorisationCreated: true,
		Amount:               lunar.Amount{Currency: currency, Decimal: amount},
	}
}

type recordedEvent struct {
	PaymentID uint
	State     string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEvents) PublishPaymentStateChanged(payment *models.Payment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{PaymentID: payment.ID, State: payment.State})
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *fakeRecorder) Observe(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[operation+"/"+result]++
}

func (r *fakeRecorder) count(operation, result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[operation+"/"+result]
}

type serviceTestEnv struct {
	db          *gorm.DB
	orderRepo   *repository.GormOrderRepository
	paymentRepo *repository.GormPaymentRepository
	gatewayRepo *repository.GormPaymentGatewayRepository
	methodRepo  *repository.GormPaymentMethodRepository
	processor   *fakeProcessor
	events      *fakeEvents
	recorder    *fakeRecorder
	payments    *PaymentService
	checkout    *CheckoutService
}

func setupServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:lunar_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	env := &serviceTestEnv{
		db:          db,
		orderRepo:   repository.NewOrderRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		gatewayRepo: repository.NewPaymentGatewayRepository(db),
		methodRepo:  repository.NewPaymentMethodRepository(db),
		processor:   &fakeProcessor{intentID: "pi_test_1"},
		events:      &fakeEvents{},
		recorder:    &fakeRecorder{},
	}
	env.payments = NewPaymentService(env.paymentRepo, env.gatewayRepo, env.methodRepo, env.processor.factory(), nil, env.events, env.recorder)
	env.checkout = NewCheckoutService(env.orderRepo, env.paymentRepo, env.gatewayRepo, env.processor.factory(), env.payments, nil, env.events, env.recorder, CheckoutOptions{
		PublicBaseURL: "https://shop.example.com/",
		SiteName:      "Example Shop",
	})
	return env
}

func (env *serviceTestEnv) createGateway(t *testing.T, code string, methodCode constants.PaymentMethodCode, config map[string]interface{}) *models.PaymentGateway {
	t.Helper()
	if config == nil {
		config = map[string]interface{}{
			"app_key":    "app_secret",
			"public_key": "public_key",
			"logo_url":   "https://shop.example.com/logo.png",
		}
	}
	gateway := &models.PaymentGateway{
		Code:       code,
		Name:       "Lunar " + methodCode.Label(),
		MethodCode: string(methodCode),
		ConfigJSON: models.JSON(config),
		IsActive:   true,
	}
	if err := env.gatewayRepo.Upsert(gateway); err != nil {
		t.Fatalf("create gateway failed: %v", err)
	}
	return gateway
}

func (env *serviceTestEnv) createOrder(t *testing.T, orderNo string, gatewayID uint, currency, total string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:       orderNo,
		GatewayID:     gatewayID,
		Status:        constants.OrderStatusPendingPayment,
		Currency:      currency,
		TotalAmount:   models.MustMoney(total),
		CustomerEmail: "buyer@example.com",
		ClientIP:      "203.0.113.7",
		Billing: models.BillingProfile{
			GivenName:    "Ada",
			FamilyName:   "Jensen",
			PostalCode:   "2100",
			CountryCode:  "DK",
			Locality:     "Copenhagen",
			AddressLine1: "Nordre Frihavnsgade 1",
		},
	}
	items := []models.OrderItem{{ProductID: 7, Title: "Coffee beans", Quantity: 2, UnitPrice: models.MustMoney(total)}}
	if err := env.orderRepo.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

// createAuthorizedPayment 直接写入已授权支付
func (env *serviceTestEnv) createAuthorizedPayment(t *testing.T, order *models.Order, remoteID, amount string) *models.Payment {
	t.Helper()
	payment, created, err := env.paymentRepo.CreateIfAbsent(&models.Payment{
		OrderID:     order.ID,
		GatewayID:   order.GatewayID,
		RemoteID:    remoteID,
		Amount:      models.MustMoney(amount),
		Currency:    order.Currency,
		State:       constants.PaymentStateAuthorization,
		GatewayMode: constants.GatewayModeTest,
	})
	if err != nil || !created {
		t.Fatalf("create payment failed: created=%v err=%v", created, err)
	}
	return payment
}

func moneyPtr(raw string) *models.Money {
	m := models.MustMoney(raw)
	return &m
}
