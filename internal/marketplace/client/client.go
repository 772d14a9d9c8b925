package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// Shipment statuses as reported by the marketplace
const (
	StatusReadyToShip = "ready_to_ship"
	StatusShipped     = "shipped"
	StatusDelivered   = "delivered"
)

// LogisticFulfillment marks shipments handled end to end by the
// marketplace's own warehouse. Those never reach our floor, the stock
// arrives separately as a consignment import.
const LogisticFulfillment = "fulfillment"

// ShipmentItem is one line of a marketplace shipment
type ShipmentItem struct {
	SKU      string `json:"seller_sku"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Shipment is the marketplace's view of one outbound parcel
type Shipment struct {
	ID            string         `json:"id"`
	OrderID       string         `json:"order_id"`
	Status        string         `json:"status"`
	LogisticType  string         `json:"logistic_type"`
	TrackingCode  string         `json:"tracking_number"`
	BuyerNickname string         `json:"buyer_nickname"`
	Items         []ShipmentItem `json:"items"`
}

// Client is the read surface of the marketplace API the sync needs
type Client interface {
	// SearchRecentShipments returns the ids of paid shipments created
	// since the given time.
	SearchRecentShipments(ctx context.Context, since time.Time) ([]string, error)

	// GetShipment fetches one shipment with its lines.
	GetShipment(ctx context.Context, id string) (*Shipment, error)
}

// HTTPClient talks to the marketplace REST API
type HTTPClient struct {
	baseURL  string
	sellerID string
	http     *http.Client
}

// NewHTTPClient creates a marketplace API client
func NewHTTPClient(cfg config.MarketplaceConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		sellerID: cfg.SellerID,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// SearchRecentShipments returns the ids of paid shipments created since
// the given time
func (c *HTTPClient) SearchRecentShipments(ctx context.Context, since time.Time) ([]string, error) {
	q := url.Values{}
	q.Set("seller", c.sellerID)
	q.Set("status", "paid")
	q.Set("created_from", since.UTC().Format(time.RFC3339))

	var result struct {
		Results []struct {
			ShipmentID string `json:"shipment_id"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/shipments/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		if r.ShipmentID != "" {
			ids = append(ids, r.ShipmentID)
		}
	}
	return ids, nil
}

// GetShipment fetches one shipment with its lines
func (c *HTTPClient) GetShipment(ctx context.Context, id string) (*Shipment, error) {
	var shipment Shipment
	if err := c.get(ctx, "/shipments/"+url.PathEscape(id), &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build marketplace request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("shipment")
	case resp.StatusCode >= 400:
		return errors.Internal(fmt.Sprintf("marketplace returned status %d for %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode marketplace response: %w", err)
	}
	return nil
}
