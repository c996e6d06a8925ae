package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

const defaultClientTimeout = 5 * time.Second

// HTTPReader fetches orders from the order service over HTTP.
type HTTPReader struct {
	baseURL string
	client  *http.Client
}

// HTTPReaderOption configures an HTTPReader.
type HTTPReaderOption func(*HTTPReader)

func WithHTTPClient(client *http.Client) HTTPReaderOption {
	return func(r *HTTPReader) {
		if client != nil {
			r.client = client
		}
	}
}

// NewHTTPReader constructs an order service client.
func NewHTTPReader(baseURL string, opts ...HTTPReaderOption) *HTTPReader {
	r := &HTTPReader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// orderResponse is the wire shape the order service returns.
type orderResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	LineItems  []struct {
		ItemID               string `json:"item_id"`
		Name                 string `json:"name"`
		Quantity             int    `json:"quantity"`
		AgeRestricted        bool   `json:"age_restricted"`
		MinimumAge           int    `json:"minimum_age"`
		RequiresPrescription bool   `json:"requires_prescription"`
		ProductType          string `json:"product_type"`
	} `json:"line_items"`
	DeliveryState string `json:"delivery_state"`
}

func (r *HTTPReader) GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/orders/"+orderID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order service call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	default:
		return nil, fmt.Errorf("order service returned %s: %w", resp.Status, sentinel.ErrUnavailable)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	parsedID, err := id.ParseOrderID(body.ID)
	if err != nil {
		return nil, fmt.Errorf("order service returned malformed id: %w", err)
	}
	customerID, err := id.ParseCustomerID(body.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("order service returned malformed customer id: %w", err)
	}

	out := &Order{
		ID:            parsedID,
		CustomerID:    customerID,
		DeliveryState: id.Jurisdiction(body.DeliveryState),
	}
	for _, item := range body.LineItems {
		out.LineItems = append(out.LineItems, LineItem{
			ItemID:               item.ItemID,
			Name:                 item.Name,
			Quantity:             item.Quantity,
			AgeRestricted:        item.AgeRestricted,
			MinimumAge:           item.MinimumAge,
			RequiresPrescription: item.RequiresPrescription,
			ProductType:          id.ProductType(item.ProductType),
		})
	}
	return out, nil
}
