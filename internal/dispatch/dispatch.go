package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// Client hands accepted orders to the external delivery service.
type Client interface {
	// Dispatch registers the order for delivery and returns the reference
	// assigned by the delivery service.
	Dispatch(ctx context.Context, order *entity.Order) (string, error)
}

// Module provides the delivery client to the Fx graph.
var Module = fx.Provide(New)

// New initialises the configured delivery client (http or noop).
func New(cfg config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.Delivery.Driver {
	case "noop":
		if logger != nil {
			logger.Info("delivery dispatch disabled; using noop client")
		}
		return noopClient{}, nil
	case "http":
		return &httpClient{
			baseURL: cfg.Delivery.BaseURL,
			apiKey:  cfg.Delivery.APIKey,
			hc:      &http.Client{Timeout: cfg.Delivery.Timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported delivery driver: %s", cfg.Delivery.Driver)
	}
}

type noopClient struct{}

func (noopClient) Dispatch(context.Context, *entity.Order) (string, error) {
	return "", nil
}

type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

type contact struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone,omitempty"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

type lineItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderPayload struct {
	OrderID       string     `json:"order_id"`
	Pickup        contact    `json:"pickup"`
	Drop          contact    `json:"drop"`
	Items         []lineItem `json:"items"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Note          string     `json:"note"`
}

type dispatchResponse struct {
	DeliveryID string `json:"delivery_id"`
	ID         string `json:"id"`
}

func (c *httpClient) Dispatch(ctx context.Context, order *entity.Order) (string, error) {
	items := make([]lineItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, lineItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}

	payload := orderPayload{
		OrderID: order.OrderID,
		Pickup: contact{
			ID:   order.RestaurantID,
			Name: order.RestaurantName,
		},
		Drop: contact{
			Name:    order.CustomerName,
			Phone:   order.CustomerPhone,
			Address: dropAddress(order),
			Lat:     order.DropLatitude,
			Lng:     order.DropLongitude,
		},
		Items:         items,
		Total:         order.Total,
		PaymentMethod: string(order.PaymentMethod),
		Note:          fmt.Sprintf("Order %s, verification code %s", order.OrderID, order.VerificationCode),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("post delivery order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("delivery service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode delivery response: %w", err)
	}
	if out.DeliveryID != "" {
		return out.DeliveryID, nil
	}
	return out.ID, nil
}

func dropAddress(order *entity.Order) string {
	if order.AddressNote == "" {
		return order.DeliveryAddress
	}
	return order.DeliveryAddress + " (" + order.AddressNote + ")"
}
