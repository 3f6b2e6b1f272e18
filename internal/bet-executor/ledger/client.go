package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ledgerdto "github.com/polybets/polybet-ledger/internal/ledger-service/dto"
)

// Client chama os endpoints do ledger restritos ao executor. Toda
// requisição carrega o token de executor; sem ele o ledger responde 401.
type Client struct {
	BaseURL       string
	ExecutorToken string
	HTTP          *http.Client
}

func New(base, token string) *Client {
	return &Client{
		BaseURL:       base,
		ExecutorToken: token,
		HTTP:          &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *Client) UpdateSlipStatus(ctx context.Context, slipID, status string) error {
	path := fmt.Sprintf("/v1/executor/bets/%s/status", slipID)
	return c.post(ctx, path, ledgerdto.UpdateStatusRequest{Status: status}, nil)
}

func (c *Client) RecordLegPlaced(ctx context.Context, slipID string, leg ledgerdto.RecordLegRequest) (*ledgerdto.RecordResponse, error) {
	var out ledgerdto.RecordResponse
	path := fmt.Sprintf("/v1/executor/bets/%s/legs", slipID)
	if err := c.post(ctx, path, leg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordLegClosed(ctx context.Context, legID string, req ledgerdto.RecordClosedRequest) (*ledgerdto.RecordResponse, error) {
	var out ledgerdto.RecordResponse
	path := fmt.Sprintf("/v1/executor/legs/%s/closed", legID)
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordLegSold(ctx context.Context, legID string, req ledgerdto.RecordSoldRequest) (*ledgerdto.RecordResponse, error) {
	var out ledgerdto.RecordResponse
	path := fmt.Sprintf("/v1/executor/legs/%s/sold", legID)
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Executor-Token", c.ExecutorToken)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("ledger %s http %d", path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
