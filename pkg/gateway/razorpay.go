package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Razorpay creates orders over the Razorpay REST API and verifies the
// HMAC-SHA256 signature returned by the checkout widget.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewRazorpay builds a client from gateway config.
func NewRazorpay(cfg config.GatewayConfig, httpClient *http.Client) (*Razorpay, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Razorpay{
		keyID:     strings.TrimSpace(cfg.KeyID),
		keySecret: strings.TrimSpace(cfg.KeySecret),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      httpClient,
	}, nil
}

func (r *Razorpay) Provider() string { return config.GatewayProviderRazorpay }

func (r *Razorpay) KeyID() string { return r.keyID }

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a payment order for amount whole units.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway amount must be positive")
	}
	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   MinorUnits(amount),
		Currency: strings.ToUpper(currency),
		Receipt:  receipt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, transient(err, "gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transient(err, "read gateway response")
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, transient(fmt.Errorf("status %d", resp.StatusCode), "gateway unavailable")
	case resp.StatusCode >= 400:
		var apiErr razorpayErrorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway rejected order").
			WithDetails(map[string]any{"status": resp.StatusCode, "code": apiErr.Error.Code, "description": apiErr.Error.Description})
	}

	var out razorpayOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway order")
	}
	if out.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order id missing")
	}
	return &Order{ID: out.ID, Amount: amount, Currency: strings.ToUpper(out.Currency)}, nil
}

// Verify checks the widget signature over "orderId|paymentId".
func (r *Razorpay) Verify(_ context.Context, v Verification) (bool, error) {
	if v.OrderID == "" || v.PaymentID == "" || v.Signature == "" {
		return false, nil
	}
	expected := Sign(r.keySecret, v.OrderID, v.PaymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v.Signature))), nil
}

// Sign computes the hex HMAC-SHA256 the gateway attaches to a payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
