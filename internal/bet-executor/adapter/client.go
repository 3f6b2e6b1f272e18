package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	adapterdto "github.com/polybets/polybet-ledger/internal/bet-executor/adapter/dto"
)

// Client fala com o marketplace adapter REST. O adapter esconde os
// detalhes de chain (EVM/SVM) atrás de uma interface única.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) BuyShares(ctx context.Context, in adapterdto.BuySharesRequest) (*adapterdto.BuySharesResponse, error) {
	var out adapterdto.BuySharesResponse
	if err := c.post(ctx, "/adapter/buy-shares", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SellShares(ctx context.Context, in adapterdto.SellSharesRequest) (*adapterdto.SellSharesResponse, error) {
	var out adapterdto.SellSharesResponse
	if err := c.post(ctx, "/adapter/sell-shares", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPrices(ctx context.Context, marketplaceID, marketID string) (*adapterdto.PricesResponse, error) {
	url := fmt.Sprintf("%s/adapter/prices?marketplace_id=%s&market_id=%s", c.BaseURL, marketplaceID, marketID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("adapter prices http %d", res.StatusCode)
	}
	var out adapterdto.PricesResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("adapter %s http %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
