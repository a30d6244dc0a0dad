// Package payos is the HTTP client for the PayOS checkout gateway fronted by
// the upstream backend. It creates payment orders and reads their status;
// interpreting the status is left to the payment engine.
package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderError is a rejection from PayOS itself, as opposed to a transport
// failure. Code "00" means success; anything else carries a description
// meant for the user.
type ProviderError struct {
	Code string
	Desc string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payos: code %s: %s", e.Code, e.Desc)
}

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type CreateOrderRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl,omitempty"`
	CancelURL   string `json:"cancelUrl,omitempty"`
	Items       []Item `json:"items"`
}

// CheckoutInfo is the handle the user pays with: a hosted checkout page, a
// bank QR payload, or the raw transfer details for manual entry.
type CheckoutInfo struct {
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	PaymentLinkID string `json:"paymentLinkId"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	BankBin       string `json:"bin"`
}

// envelope covers both response shapes PayOS is known to produce: a wrapped
// {code, desc, data:{...}} object and the payload at the top level.
type envelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// CreateOrder registers a checkout attempt with PayOS and returns the
// checkout handle. A non-"00" provider code comes back as *ProviderError.
func (c *Client) CreateOrder(ctx context.Context, token string, req CreateOrderRequest) (*CheckoutInfo, error) {
	const op = "payos.CreateOrder"

	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: json.Marshal: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payos/create", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: http.NewRequestWithContext: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: io.ReadAll: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if perr := decodeProviderError(body); perr != nil {
			return nil, fmt.Errorf("%s: %w", op, perr)
		}
		return nil, fmt.Errorf("%s: resp.StatusCode: %d, resp.Body: %s", op, resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: json.Unmarshal: %w", op, err)
	}
	if env.Code != "" && env.Code != "00" {
		return nil, fmt.Errorf("%s: %w", op, &ProviderError{Code: env.Code, Desc: env.Desc})
	}

	payload := body
	if len(env.Data) > 0 {
		payload = env.Data
	}

	var info CheckoutInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("%s: json.Unmarshal: %w", op, err)
	}
	if info.CheckoutURL == "" && info.QRCode == "" {
		return nil, fmt.Errorf("%s: %w", op, &ProviderError{Code: env.Code, Desc: "no checkout handle in response"})
	}

	return &info, nil
}

// CheckOrder reads the current provider-side status of an order. The status
// is returned verbatim; use Paid to interpret it.
func (c *Client) CheckOrder(ctx context.Context, token string, orderCode int64) (string, error) {
	const op = "payos.CheckOrder"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/payos/check/%d", c.baseURL, orderCode), nil)
	if err != nil {
		return "", fmt.Errorf("%s: http.NewRequestWithContext: %w", op, err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: io.ReadAll: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: resp.StatusCode: %d, resp.Body: %s", op, resp.StatusCode, body)
	}

	var env struct {
		Status string `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%s: json.Unmarshal: %w", op, err)
	}

	if env.Data.Status != "" {
		return env.Data.Status, nil
	}
	return env.Status, nil
}

// Paid reports whether a provider status string means the money arrived.
// PayOS has been seen returning both "PAID" and "COMPLETED", in mixed case.
func Paid(status string) bool {
	return strings.EqualFold(status, "PAID") || strings.EqualFold(status, "COMPLETED")
}

func decodeProviderError(body []byte) *ProviderError {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	if env.Code == "" || env.Code == "00" {
		return nil
	}
	return &ProviderError{Code: env.Code, Desc: env.Desc}
}
