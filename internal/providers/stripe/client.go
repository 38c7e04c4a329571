// Package stripe is a thin form-encoded client for the provider calls this
// service issues: hosted checkout sessions, customer lookups and payout
// transfers.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CheckoutSession is the subset of the hosted session object this service
// reads back.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Customer is the subset of the provider customer object consumed by the
// membership sync.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Transfer is a funds transfer to a connected payout account.
type Transfer struct {
	ID string `json:"id"`
}

// LineItem describes a single charged line of a checkout session.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// CheckoutSessionParams carries everything embedded into a hosted session.
type CheckoutSessionParams struct {
	Mode       string // payment or subscription
	Currency   string
	LineItem   LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

// TransferParams carries a payout transfer request.
type TransferParams struct {
	Amount         int64
	Currency       string
	Destination    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Client is the provider surface consumed by checkout, membership and escrow.
type Client interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error)
	RetrieveCustomer(ctx context.Context, customerID string) (Customer, error)
	CreateTransfer(ctx context.Context, params TransferParams) (Transfer, error)
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpClient struct {
	apiKey string
	client *http.Client
}

func NewClient(apiKey string) Client {
	return &httpClient{
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *httpClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", params.Mode)
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("line_items[0][quantity]", strconv.FormatInt(params.LineItem.Quantity, 10))
	values.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.LineItem.UnitAmount, 10))
	values.Set("line_items[0][price_data][product_data][name]", params.LineItem.Name)
	if params.LineItem.Description != "" {
		values.Set("line_items[0][price_data][product_data][description]", params.LineItem.Description)
	}
	if params.LineItem.ImageURL != "" {
		values.Set("line_items[0][price_data][product_data][images][0]", params.LineItem.ImageURL)
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var session CheckoutSession
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, "", &session); err != nil {
		return CheckoutSession{}, err
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, errors.New("stripe_response_invalid")
	}
	return session, nil
}

func (c *httpClient) RetrieveCustomer(ctx context.Context, customerID string) (Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Customer{}, errors.New("stripe_customer_required")
	}

	var customer Customer
	if err := c.doRequest(ctx, http.MethodGet, "/v1/customers/"+customerID, nil, "", &customer); err != nil {
		return Customer{}, err
	}
	if customer.ID == "" {
		return Customer{}, errors.New("stripe_response_invalid")
	}
	return customer, nil
}

func (c *httpClient) CreateTransfer(ctx context.Context, params TransferParams) (Transfer, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(params.Amount, 10))
	values.Set("currency", strings.ToLower(params.Currency))
	values.Set("destination", params.Destination)
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var transfer Transfer
	if err := c.doRequest(ctx, http.MethodPost, "/v1/transfers", values, params.IdempotencyKey, &transfer); err != nil {
		return Transfer{}, err
	}
	if transfer.ID == "" {
		return Transfer{}, errors.New("stripe_response_invalid")
	}
	return transfer, nil
}

func (c *httpClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return errors.New("stripe_api_key_missing")
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://api.stripe.com"+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return errors.New(message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
