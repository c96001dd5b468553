package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/dujiao-next/lunar-gateway/internal/constants"
	"github.com/dujiao-next/lunar-gateway/internal/models"
	"github.com/dujiao-next/lunar-gateway/internal/payment/lunar"
)

func TestCheckoutRoundTripCreatesAuthorization(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "CHK001", gateway.ID, "DKK", "100.00")
	env.processor.intentID = "pi_round_trip"

	target, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("start checkout failed: %v", err)
	}
	if target.URL != lunar.DefaultHostedCheckoutURL+"pi_round_trip" || target.TestMode {
		t.Fatalf("unexpected redirect target: %+v", target)
	}
	req := env.processor.createRequests[0]
	if req.RedirectURL != env.checkout.ReturnURL(order.ID) || !strings.HasPrefix(req.RedirectURL, "https://shop.example.com/api/v1/") {
		t.Fatalf("unexpected redirect url: %s", req.RedirectURL)
	}
	if req.Test != nil {
		t.Fatalf("live checkout must not carry test payload")
	}
	if req.Integration.Name != "Example Shop" || req.Amount.Decimal != "100.00" {
		t.Fatalf("unexpected intent request: %+v", req)
	}
	intentID, err := env.orderRepo.GetRemoteIntentID(order.ID)
	if err != nil || intentID != "pi_round_trip" {
		t.Fatalf("intent id should be stored: %q %v", intentID, err)
	}

	env.processor.transaction = authorizedTransaction("DKK", "100.00")
	outcome, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID, RemoteState: "authorized"})
	if err != nil {
		t.Fatalf("complete return failed: %v", err)
	}
	payment := outcome.Payment
	if outcome.Duplicate || outcome.Captured || payment == nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if payment.State != constants.PaymentStateAuthorization || payment.RemoteID != "pi_round_trip" {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if !payment.Amount.Equal(models.MustMoney("100.00")) || payment.Currency != "DKK" {
		t.Fatalf("unexpected payment amount: %s %s", payment.Amount, payment.Currency)
	}
	if payment.GatewayMode != constants.GatewayModeLive || payment.RemoteState != "authorized" || payment.AuthorizedAt == nil {
		t.Fatalf("unexpected payment metadata: %+v", payment)
	}
	if env.processor.operationCount() != 0 {
		t.Fatalf("delayed capture must not capture on return")
	}
	if len(env.events.events) != 1 || env.events.events[0].State != constants.PaymentStateAuthorization {
		t.Fatalf("authorization should emit one event: %+v", env.events.events)
	}
	if env.recorder.count("intent", operationResultSuccess) != 1 || env.recorder.count(constants.PaymentOperationAuthorize, operationResultSuccess) != 1 {
		t.Fatalf("checkout metrics not recorded: %+v", env.recorder.results)
	}
}

func TestStartCheckoutTestModeUsesSandbox(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "CHK002", gateway.ID, "DKK", "100.00")
	env.processor.intentID = "pi_sandbox"

	target, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID, TestMode: true})
	if err != nil {
		t.Fatalf("start checkout failed: %v", err)
	}
	if target.URL != lunar.DefaultTestHostedCheckoutURL+"pi_sandbox" || !target.TestMode {
		t.Fatalf("unexpected sandbox target: %+v", target)
	}
	if env.processor.createRequests[0].Test == nil {
		t.Fatalf("test mode checkout should carry test payload")
	}
	if !env.processor.testModes[0] {
		t.Fatalf("test mode should reach the client factory")
	}

	env.processor.transaction = authorizedTransaction("DKK", "100.00")
	outcome, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID, TestMode: true})
	if err != nil {
		t.Fatalf("complete return failed: %v", err)
	}
	if outcome.Payment.GatewayMode != constants.GatewayModeTest {
		t.Fatalf("sandbox payment should be tagged test, got %s", outcome.Payment.GatewayMode)
	}
}

func TestStartCheckoutFailurePersistsNothing(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "CHK003", gateway.ID, "DKK", "100.00")

	env.processor.createErr = &lunar.APIError{StatusCode: 400, Message: "amount.decimal: invalid"}
	_, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID})
	if !errors.Is(err, ErrProcessor) || DisplayMessage(err) != constants.PaymentIntentFailMsg {
		t.Fatalf("want processor error with payer notice, got %v", err)
	}
	if intentID, _ := env.orderRepo.GetRemoteIntentID(order.ID); intentID != "" {
		t.Fatalf("failed checkout must not store an intent id, got %q", intentID)
	}

	env.processor.createErr = nil
	env.processor.intentID = ""
	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID}); !errors.Is(err, ErrProcessor) {
		t.Fatalf("empty intent id want ErrProcessor, got %v", err)
	}
	if intentID, _ := env.orderRepo.GetRemoteIntentID(order.ID); intentID != "" {
		t.Fatalf("empty intent id must not be stored")
	}
}

func TestStartCheckoutRestartOverwritesIntent(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "CHK004", gateway.ID, "DKK", "100.00")

	env.processor.intentID = "pi_first"
	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID}); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	env.processor.intentID = "pi_second"
	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID}); err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if intentID, _ := env.orderRepo.GetRemoteIntentID(order.ID); intentID != "pi_second" {
		t.Fatalf("restart should overwrite intent id, got %q", intentID)
	}
}

func TestStartCheckoutGatewayErrors(t *testing.T) {
	env := setupServiceTestEnv(t)

	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: 999}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}

	mobilePay := env.createGateway(t, "lunar-mobilepay", constants.PaymentMethodMobilePay, nil)
	order := env.createOrder(t, "CHK005", mobilePay.ID, "DKK", "100.00")
	_, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: order.ID})
	if !errors.Is(err, ErrConfiguration) || DisplayMessage(err) != constants.PaymentIntentFailMsg {
		t.Fatalf("mobilepay without configuration id want ErrConfiguration, got %v", err)
	}
	if len(env.processor.createRequests) != 0 {
		t.Fatalf("configuration errors must not reach the processor")
	}

	broken := env.createGateway(t, "lunar-broken", constants.PaymentMethodCard, map[string]interface{}{"public_key": "pk"})
	brokenOrder := env.createOrder(t, "CHK006", broken.ID, "DKK", "100.00")
	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: brokenOrder.ID}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("missing app key want ErrConfiguration, got %v", err)
	}

	inactive := env.createGateway(t, "lunar-off", constants.PaymentMethodCard, nil)
	inactive.IsActive = false
	if err := env.gatewayRepo.Upsert(inactive); err != nil {
		t.Fatalf("deactivate gateway failed: %v", err)
	}
	inactiveOrder := env.createOrder(t, "CHK007", inactive.ID, "DKK", "100.00")
	if _, err := env.checkout.StartCheckout(StartCheckoutInput{OrderID: inactiveOrder.ID}); !errors.Is(err, ErrGatewayInactive) {
		t.Fatalf("want ErrGatewayInactive, got %v", err)
	}
}

func TestCompleteReturnAmountMismatch(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "RET001", gateway.ID, "DKK", "100.00")
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_mismatch"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}

	env.processor.transaction = authorizedTransaction("DKK", "90.00")
	_, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("want ErrIntegrity, got %v", err)
	}
	if strings.Contains(DisplayMessage(err), "90.00") {
		t.Fatalf("integrity details must not leak to the payer: %q", DisplayMessage(err))
	}
	payments, _ := env.paymentRepo.ListByOrderID(order.ID)
	if len(payments) != 0 {
		t.Fatalf("integrity failure must not create payments")
	}
	if env.recorder.count(constants.PaymentOperationAuthorize, operationResultRejected) != 1 {
		t.Fatalf("integrity failure should be recorded")
	}
}

func TestCompleteReturnCurrencyMismatchAndUnauthorised(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "RET002", gateway.ID, "DKK", "100.00")
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_currency"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}

	env.processor.transaction = authorizedTransaction("EUR", "100.00")
	if _, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("currency mismatch want ErrIntegrity, got %v", err)
	}
	env.processor.transaction = &lunar.Transaction{Amount: lunar.Amount{Currency: "DKK", Decimal: "100.00"}}
	if _, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("unauthorised transaction want ErrIntegrity, got %v", err)
	}
	payments, _ := env.paymentRepo.ListByOrderID(order.ID)
	if len(payments) != 0 {
		t.Fatalf("failed verification must not create payments")
	}
}

func TestCompleteReturnIsIdempotent(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "RET003", gateway.ID, "DKK", "100.00")
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_twice"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}
	env.processor.transaction = authorizedTransaction("DKK", "100.00")

	first, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("first return failed: %v", err)
	}
	second, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("second return failed: %v", err)
	}
	if !second.Duplicate || second.Payment.ID != first.Payment.ID {
		t.Fatalf("second return should reuse payment: first=%d second=%+v", first.Payment.ID, second)
	}
	if env.processor.fetchCalls != 1 {
		t.Fatalf("duplicate return must not fetch again, fetches=%d", env.processor.fetchCalls)
	}
	payments, _ := env.paymentRepo.ListByOrderID(order.ID)
	if len(payments) != 1 {
		t.Fatalf("want exactly one payment, got %d", len(payments))
	}
}

func TestCompleteReturnMissingIntentAndFetchFailure(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "RET004", gateway.ID, "DKK", "100.00")

	if _, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID}); !errors.Is(err, ErrMissingIntent) {
		t.Fatalf("want ErrMissingIntent, got %v", err)
	}
	if _, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID + 100}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}

	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_gone"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}
	env.processor.fetchErr = &lunar.APIError{StatusCode: 404, Message: "Payment not found"}
	_, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if !errors.Is(err, ErrProcessor) {
		t.Fatalf("want ErrProcessor, got %v", err)
	}
	if got := DisplayMessage(err); got != "Transaction pi_gone not found. Payment not found" {
		t.Fatalf("unexpected message: %q", got)
	}
	reloaded, _ := env.orderRepo.GetByID(order.ID)
	if reloaded.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("fetch failure must leave the order untouched, got %s", reloaded.Status)
	}
}

func TestCompleteReturnInstantCapture(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-instant", constants.PaymentMethodCard, map[string]interface{}{
		"app_key":      "app_secret",
		"public_key":   "public_key",
		"capture_mode": "instant",
	})
	order := env.createOrder(t, "RET005", gateway.ID, "DKK", "100.00")
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_instant"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}
	env.processor.transaction = authorizedTransaction("DKK", "100.00")

	outcome, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("complete return failed: %v", err)
	}
	if !outcome.Captured || outcome.CaptureError != nil || outcome.Payment.State != constants.PaymentStateCompleted {
		t.Fatalf("instant mode should capture: %+v", outcome)
	}
	call := env.processor.operations[0]
	if call.Action != "capture" || call.Amount.Decimal != "100.00" {
		t.Fatalf("unexpected capture call: %+v", call)
	}
}

func TestCompleteReturnInstantCaptureFailureKeepsAuthorization(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-instant", constants.PaymentMethodCard, map[string]interface{}{
		"app_key":      "app_secret",
		"public_key":   "public_key",
		"capture_mode": "instant",
	})
	order := env.createOrder(t, "RET006", gateway.ID, "DKK", "100.00")
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_instant_fail"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}
	env.processor.transaction = authorizedTransaction("DKK", "100.00")
	env.processor.operationFunc = func(string, lunar.Amount) *lunar.OperationResult {
		return &lunar.OperationResult{State: "declined", DeclinedReason: "Card expired"}
	}

	outcome, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("capture failure must not fail the return leg: %v", err)
	}
	if outcome.Captured || !errors.Is(outcome.CaptureError, ErrCaptureFailed) {
		t.Fatalf("capture failure should be reported: %+v", outcome)
	}
	stored, _ := env.paymentRepo.GetByRemoteID("pi_instant_fail")
	if stored == nil || stored.State != constants.PaymentStateAuthorization {
		t.Fatalf("payment should remain authorized: %+v", stored)
	}
}

func TestCompleteReturnUsesOrderBalanceForPaymentAmount(t *testing.T) {
	env := setupServiceTestEnv(t)
	gateway := env.createGateway(t, "lunar-card", constants.PaymentMethodCard, nil)
	order := env.createOrder(t, "RET007", gateway.ID, "DKK", "100.00")
	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("paid_amount", models.MustMoney("20.00")).Error; err != nil {
		t.Fatalf("update paid amount failed: %v", err)
	}
	if err := env.orderRepo.SetRemoteIntentID(order.ID, "pi_balance"); err != nil {
		t.Fatalf("set intent failed: %v", err)
	}
	env.processor.transaction = authorizedTransaction("DKK", "100.00")

	outcome, err := env.checkout.CompleteReturn(CompleteReturnInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("complete return failed: %v", err)
	}
	if !outcome.Payment.Amount.Equal(models.MustMoney("80.00")) {
		t.Fatalf("payment amount should be the order balance, got %s", outcome.Payment.Amount)
	}
}
