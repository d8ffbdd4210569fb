// Package ordersystem talks to the external checkout system that owns carts
// and orders. Every call goes through a circuit breaker.
package ordersystem

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	bookingserrors "coworking/internal/bookings/errors"
	"coworking/pkg/client"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable covers transport failures, 5xx answers and an open breaker.
var ErrUnavailable = errors.New("order system unavailable")

type Client interface {
	// AddToCart registers the attempt as a cart item and returns the URL the
	// customer is sent to.
	AddToCart(ctx context.Context, handoff model.CartHandoff) (string, error)
	// RemoveFromCart drops the item carrying token. Unknown items are not an error.
	RemoveFromCart(ctx context.Context, token string) error
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

type addToCartResponse struct {
	RedirectURL string `json:"redirect_url"`
}

type httpClient struct {
	http    *client.HttpClient
	breaker *gobreaker.CircuitBreaker[*client.Response]
	log     *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) Client {
	maxFailures := max(cfg.MaxFailures, 1)
	settings := gobreaker.Settings{
		Name:        "order-system",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &httpClient{
		http:    client.NewHttpClient(cfg.BaseURL, cfg.Timeout),
		breaker: gobreaker.NewCircuitBreaker[*client.Response](settings),
		log:     log,
	}
}

func (c *httpClient) AddToCart(ctx context.Context, handoff model.CartHandoff) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/cart/items", handoff)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: %s", bookingserrors.ErrHandoffRejected, client.ErrorMessage(resp))
	}

	var body addToCartResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if body.RedirectURL == "" {
		return "", fmt.Errorf("%w: response carries no redirect_url", ErrUnavailable)
	}
	return body.RedirectURL, nil
}

func (c *httpClient) RemoveFromCart(ctx context.Context, token string) error {
	resp, err := c.call(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(token), nil)
	if err != nil {
		return err
	}
	if resp.IsSuccess() || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("%w: %s", bookingserrors.ErrHandoffRejected, client.ErrorMessage(resp))
}

// call counts transport errors and 5xx answers against the breaker. A 4xx
// answer is returned to the caller without tripping it.
func (c *httpClient) call(ctx context.Context, method, path string, body any) (*client.Response, error) {
	resp, err := c.breaker.Execute(func() (*client.Response, error) {
		resp, err := c.http.Do(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, client.ErrorMessage(resp))
		}
		return resp, nil
	})
	if err != nil {
		c.log.Error("Order system call failed",
			"method", method,
			"path", path,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}
