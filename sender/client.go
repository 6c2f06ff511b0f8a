package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vault/config"
	"vault/handlers"
	"vault/types"

	"github.com/quic-go/quic-go/http3"
)

// 响应体上限，防止异常节点返回超大内容
const maxResponseBody = 4 << 20

// Client vault 节点 API 客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 使用 HTTP/3 连接 cfg.NodeURL
func NewClient(cfg config.ClientConfig) *Client {
	return NewClientWithHTTP(cfg.NodeURL, createHttp3Client(cfg))
}

// NewClientWithHTTP 自带 http.Client（测试或走 TCP TLS 时使用）
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Close 释放 QUIC 连接
func (c *Client) Close() error {
	if tr, ok := c.http.Transport.(*http3.Transport); ok {
		return tr.Close()
	}
	return nil
}

// Submit 提交已签名指令
func (c *Client) Submit(ctx context.Context, ix *types.Instruction) (*handlers.ReceiptResponse, error) {
	var resp handlers.ReceiptResponse
	if err := c.do(ctx, http.MethodPost, "/vault/submit", nil, ix, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VaultState 查询 owner 的 vault
func (c *Client) VaultState(ctx context.Context, owner types.Address) (*handlers.VaultStateResponse, error) {
	var resp handlers.VaultStateResponse
	q := url.Values{"owner": {owner.String()}}
	if err := c.do(ctx, http.MethodGet, "/vault/state", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account 查询任意账户
func (c *Client) Account(ctx context.Context, addr types.Address) (*handlers.AccountResponse, error) {
	var resp handlers.AccountResponse
	q := url.Values{"address": {addr.String()}}
	if err := c.do(ctx, http.MethodGet, "/account", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Receipt 按指令 ID 查回执
func (c *Client) Receipt(ctx context.Context, id string) (*handlers.ReceiptResponse, error) {
	var resp handlers.ReceiptResponse
	if err := c.do(ctx, http.MethodGet, "/receipt", url.Values{"id": {id}}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Airdrop 向水龙头申请，amount 支持 "1.5sol" 或 lamports
func (c *Client) Airdrop(ctx context.Context, to types.Address, amount string) (*handlers.ReceiptResponse, error) {
	var resp handlers.ReceiptResponse
	req := handlers.FaucetRequest{Address: to.String(), Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/faucet", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status 节点状态
func (c *Client) Status(ctx context.Context) (*handlers.StatusResponse, error) {
	var resp handlers.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(data))
		var er handlers.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &httpStatusError{op: method + " " + path, statusCode: resp.StatusCode, body: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
