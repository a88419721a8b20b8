// Package vipps is a small client for the Vipps Checkout session API.  It
// only covers session creation; payment status changes arrive through the
// webhook, which is handled elsewhere.
package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrSessionRejected is returned when Vipps answers with a non-2xx status
// or a response without a session token.
var ErrSessionRejected = errors.New("vipps: checkout session rejected")

// Config holds the merchant credentials and URLs used for every session.
type Config struct {
	BaseURL                    string
	ClientID                   string
	ClientSecret               string
	SubscriptionKey            string
	MerchantSerialNumber       string
	CallbackURL                string
	ReturnURL                  string
	CallbackAuthorizationToken string
	Timeout                    time.Duration
}

// SessionRequest describes one payment attempt.  AmountMinorUnits is the
// order total in øre.  Reference is the order id.
type SessionRequest struct {
	AmountMinorUnits int64
	Currency         string
	Reference        string
	Description      string
	Email            string
	FirstName        string
	LastName         string
	PhoneNumber      string
	OrderID          string
}

// Session is the created checkout session.
type Session struct {
	Token               string `json:"token"`
	CheckoutFrontendURL string `json:"checkoutFrontendUrl"`
	PollingURL          string `json:"pollingUrl,omitempty"`
}

// Client talks to the Vipps Checkout API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client.  A zero Timeout defaults to ten seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type sessionBody struct {
	MerchantInfo struct {
		CallbackURL                string `json:"callbackUrl"`
		ReturnURL                  string `json:"returnUrl"`
		CallbackAuthorizationToken string `json:"callbackAuthorizationToken"`
	} `json:"merchantInfo"`
	Transaction struct {
		Amount             amount `json:"amount"`
		Reference          string `json:"reference"`
		PaymentDescription string `json:"paymentDescription"`
	} `json:"transaction"`
	PrefillCustomer *prefill `json:"prefillCustomer,omitempty"`
}

type prefill struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// CreateCheckoutSession creates a Vipps Checkout session for an order.
// Any non-2xx answer is reported as ErrSessionRejected.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	var body sessionBody
	body.MerchantInfo.CallbackURL = c.cfg.CallbackURL
	body.MerchantInfo.ReturnURL = returnURL(c.cfg.ReturnURL, req.OrderID)
	body.MerchantInfo.CallbackAuthorizationToken = c.cfg.CallbackAuthorizationToken
	body.Transaction.Amount = amount{Value: req.AmountMinorUnits, Currency: req.Currency}
	body.Transaction.Reference = req.Reference
	body.Transaction.PaymentDescription = req.Description
	if req.Email != "" || req.FirstName != "" || req.PhoneNumber != "" {
		body.PrefillCustomer = &prefill{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Session{}, fmt.Errorf("vipps: encode session: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/checkout/v3/session", bytes.NewReader(payload))
	if err != nil {
		return Session{}, fmt.Errorf("vipps: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("client_id", c.cfg.ClientID)
	httpReq.Header.Set("client_secret", c.cfg.ClientSecret)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	httpReq.Header.Set("Merchant-Serial-Number", c.cfg.MerchantSerialNumber)
	httpReq.Header.Set("Idempotency-Key", req.Reference)
	httpReq.Header.Set("Vipps-System-Name", "webshop-checkout")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("vipps: create session: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("vipps: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, fmt.Errorf("%w: status %d: %s", ErrSessionRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("vipps: decode session: %w", err)
	}
	if s.Token == "" || s.CheckoutFrontendURL == "" {
		return Session{}, fmt.Errorf("%w: incomplete session", ErrSessionRejected)
	}
	return s, nil
}

// returnURL appends the order id to the configured return URL so the shop
// can show the right receipt after payment.
func returnURL(base, orderID string) string {
	u, err := url.Parse(base)
	if err != nil || orderID == "" {
		return base
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}
