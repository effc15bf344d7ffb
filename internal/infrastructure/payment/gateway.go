package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
)

const EventChargeSuccess = "charge.success"

type InitRequest struct {
	Reference string
	Amount    decimal.Decimal
	Method    models.FundingMethod
	Phone     string
	Email     string
}

type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"paymentUrl"`
}

// WebhookEvent is the subset of a gateway callback the wallet needs.
// Amounts are in the minor currency unit.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		Currency  string `json:"currency"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// MajorAmount converts the minor-unit amount to currency units.
func (e *WebhookEvent) MajorAmount() decimal.Decimal {
	return decimal.New(e.Data.Amount, -2)
}

type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (*Checkout, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// Paystack signs webhooks with HMAC-SHA512 of the raw body. Checkout
// initialisation is simulated: no call leaves the process.
type Paystack struct {
	secretKey   string
	checkoutURL string
}

func NewPaystack(secretKey, checkoutURL string) *Paystack {
	return &Paystack{secretKey: secretKey, checkoutURL: checkoutURL}
}

func (p *Paystack) Initialize(_ context.Context, req InitRequest) (*Checkout, error) {
	if req.Reference == "" {
		return nil, pkgerrors.ErrInvalidReference
	}
	slog.Info("payment initialized", "reference", req.Reference, "amount", req.Amount, "method", req.Method)
	return &Checkout{
		Reference:        req.Reference,
		AuthorizationURL: fmt.Sprintf("%s/%s", p.checkoutURL, req.Reference),
	}, nil
}

func (p *Paystack) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if p.secretKey == "" || signature == "" {
		return nil, pkgerrors.ErrInvalidSignature
	}
	expected := Sign(p.secretKey, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, pkgerrors.ErrInvalidSignature
	}

	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", pkgerrors.ErrInvalidInput)
	}
	return &evt, nil
}

// Sign returns the hex HMAC-SHA512 of payload.
func Sign(secretKey string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
