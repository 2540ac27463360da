package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Receipt is the extracted content of a receipt image.
type Receipt struct {
	MerchantName    string        `json:"merchantName"`
	TransactionDate string        `json:"transactionDate"`
	Items           []ReceiptItem `json:"items"`
}

// ReceiptItem is one extracted line item.
type ReceiptItem struct {
	Description string  `json:"description"`
	TotalPrice  float64 `json:"totalPrice"`
	Quantity    float64 `json:"quantity"`
}

// Analyzer extracts receipt content from a publicly resolvable image URL.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*Receipt, error)
}

// HTTPAnalyzer implements Analyzer against a document-intelligence vendor:
// the image URL is posted as JSON and the extraction comes back in the
// response body.
type HTTPAnalyzer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPAnalyzer creates an analyzer for the given vendor endpoint.
// A nil client defaults to one with a 30 second timeout.
func NewHTTPAnalyzer(endpoint, apiKey string, client *http.Client) *HTTPAnalyzer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAnalyzer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
	}
}

// Analyze posts the image URL to the vendor and decodes the extraction.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, imageURL string) (*Receipt, error) {
	payload, err := json.Marshal(map[string]string{"urlSource": imageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call analyzer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyzer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	receipt := &Receipt{}
	if err := json.Unmarshal(body, receipt); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	if receipt.Items == nil {
		receipt.Items = []ReceiptItem{}
	}

	return receipt, nil
}
