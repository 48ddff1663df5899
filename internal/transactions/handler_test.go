package transactions

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/kobo-pay/kobo_pay/internal/ledger"
	"github.com/kobo-pay/kobo_pay/internal/wallet"
)

func setupTestApp(t *testing.T) (*fiber.App, *wallet.Service, ledger.Ledger) {
	t.Helper()
	led := ledger.NewInMemory()
	walletSvc := wallet.NewService(led)
	handler := NewHandler(NewService(led, nil, nil))

	app := fiber.New()
	app.Post("/transactions", handler.Apply)
	app.Post("/transactions/transfer", handler.Transfer)

	return app, walletSvc, led
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, payload
}

func TestHandlerApplyCreditReplayIsByteIdentical(t *testing.T) {
	app, walletSvc, _ := setupTestApp(t)
	w, err := walletSvc.Create(context.Background(), wallet.CreateInput{InitialBalance: 100})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	body := `{"wallet_id":"` + w.ID + `","amount":200,"type":"CREDIT","idempotency_key":"k1"}`

	status, first := postJSON(t, app, "/transactions", body)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, first)
	}

	var decoded struct {
		Status string                   `json:"status"`
		Data   ledger.TransactionResult `json:"data"`
	}
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Status != "SUCCESS" || decoded.Data.Balance != 300 {
		t.Fatalf("unexpected response: %s", first)
	}

	status, second := postJSON(t, app, "/transactions", body)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", status)
	}
	if string(second) != string(first) {
		t.Fatalf("replay differs:\n%s\n%s", first, second)
	}
}

func TestHandlerApplyErrorMapping(t *testing.T) {
	app, walletSvc, led := setupTestApp(t)
	ctx := context.Background()
	w, _ := walletSvc.Create(ctx, wallet.CreateInput{InitialBalance: 10})

	// Unknown wallet.
	status, _ := postJSON(t, app, "/transactions",
		`{"wallet_id":"`+uuid.NewString()+`","amount":5,"type":"DEBIT","idempotency_key":"nf"}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}

	// Insufficient balance.
	status, _ = postJSON(t, app, "/transactions",
		`{"wallet_id":"`+w.ID+`","amount":20,"type":"DEBIT","idempotency_key":"k2"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	// Validation failures.
	for _, body := range []string{
		`{"wallet_id":"` + w.ID + `","amount":0,"type":"CREDIT","idempotency_key":"k"}`,
		`{"wallet_id":"` + w.ID + `","amount":5,"type":"REFUND","idempotency_key":"k"}`,
		`{"wallet_id":"` + w.ID + `","amount":5,"type":"CREDIT","idempotency_key":""}`,
	} {
		if status, _ := postJSON(t, app, "/transactions", body); status != fiber.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, status)
		}
	}

	// Journal/response divergence surfaces as a conflict.
	if _, err := led.Apply(ctx, ledger.ApplyInput{WalletID: w.ID, Amount: 1, Kind: ledger.KindCredit, IdempotencyKey: "dup"}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}
	ledger.DropStoredResponse(led, "dup")
	status, _ = postJSON(t, app, "/transactions",
		`{"wallet_id":"`+w.ID+`","amount":1,"type":"CREDIT","idempotency_key":"dup"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestHandlerTransfer(t *testing.T) {
	app, walletSvc, _ := setupTestApp(t)
	ctx := context.Background()
	a, _ := walletSvc.Create(ctx, wallet.CreateInput{InitialBalance: 100})
	b, _ := walletSvc.Create(ctx, wallet.CreateInput{InitialBalance: 0})

	body := `{"from_wallet_id":"` + a.ID + `","to_wallet_id":"` + b.ID + `","amount":40,"idempotency_key":"t1"}`

	status, first := postJSON(t, app, "/transactions/transfer", body)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, first)
	}

	var decoded struct {
		Data ledger.TransferResult `json:"data"`
	}
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Data.FromBalance != 60 || decoded.Data.ToBalance != 40 {
		t.Fatalf("unexpected balances: %s", first)
	}

	status, second := postJSON(t, app, "/transactions/transfer", body)
	if status != fiber.StatusOK || string(second) != string(first) {
		t.Fatalf("replay differs (status %d):\n%s\n%s", status, first, second)
	}

	// Self transfer is rejected at the boundary.
	status, _ = postJSON(t, app, "/transactions/transfer",
		`{"from_wallet_id":"`+a.ID+`","to_wallet_id":"`+a.ID+`","amount":1,"idempotency_key":"self"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for self transfer, got %d", status)
	}
}
