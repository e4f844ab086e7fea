package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/trade_risk_engine/internal/domain"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8787"
	DefaultWSURL   = "ws://127.0.0.1:8787/stream"
)

// GatewayAdapter talks to the MT5 bridge over signed REST calls and keeps a
// price cache fed by the bridge's websocket tick stream.
type GatewayAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client

	wsConn    *websocket.Conn
	wsDone    chan struct{}
	callbacks []func(symbol string, price float64)
	prices    map[string]float64
	mu        sync.Mutex
}

func NewGatewayAdapter(apiKey, apiSecret, baseURL, wsURL string) *GatewayAdapter {
	return &GatewayAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		wsDone:    make(chan struct{}),
		prices:    make(map[string]float64),
	}
}

// --- REST API ---

func (g *GatewayAdapter) sign(params string, timestamp int64) string {
	toSign := fmt.Sprintf("%d%s%s", timestamp, g.apiKey, params)
	h := hmac.New(sha256.New, []byte(g.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *GatewayAdapter) sendRequest(ctx context.Context, method, path string, payload map[string]interface{}) ([]byte, error) {
	timestamp := time.Now().UnixMilli()

	var body []byte
	var paramsStr string

	if payload != nil {
		jsonBody, _ := json.Marshal(payload)
		body = jsonBody
		paramsStr = string(jsonBody)
	} else if method == "GET" {
		if idx := strings.Index(path, "?"); idx != -1 {
			paramsStr = path[idx+1:]
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-RISK-API-KEY", g.apiKey)
	req.Header.Set("X-RISK-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-RISK-SIGN", g.sign(paramsStr, timestamp))
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway error: %s", string(respBody))
	}

	return respBody, nil
}

type gatewayResult struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (g *GatewayAdapter) call(ctx context.Context, method, path string, payload map[string]interface{}, out interface{}) error {
	resp, err := g.sendRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	var result gatewayResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	if result.RetCode != 0 {
		return fmt.Errorf("gateway error %d: %s", result.RetCode, result.RetMsg)
	}
	if out != nil && len(result.Result) > 0 {
		return json.Unmarshal(result.Result, out)
	}
	return nil
}

func (g *GatewayAdapter) OpenPositions(ctx context.Context, symbol string) ([]*domain.BrokerPosition, error) {
	var raw struct {
		List []struct {
			Ticket     int64   `json:"ticket"`
			Symbol     string  `json:"symbol"`
			Type       int     `json:"type"`
			Volume     float64 `json:"volume"`
			OpenPrice  float64 `json:"openPrice"`
			StopLoss   float64 `json:"sl"`
			TakeProfit float64 `json:"tp"`
			Profit     float64 `json:"profit"`
			Swap       float64 `json:"swap"`
			Commission float64 `json:"commission"`
			Magic      int64   `json:"magic"`
		} `json:"list"`
	}
	if err := g.call(ctx, "GET", "/api/v1/positions?symbol="+symbol, nil, &raw); err != nil {
		return nil, err
	}

	positions := make([]*domain.BrokerPosition, 0, len(raw.List))
	for _, p := range raw.List {
		positions = append(positions, &domain.BrokerPosition{
			Ticket:     p.Ticket,
			Symbol:     p.Symbol,
			Type:       p.Type,
			Size:       p.Volume,
			OpenPrice:  p.OpenPrice,
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
			Profit:     p.Profit,
			Swap:       p.Swap,
			Commission: p.Commission,
			Magic:      p.Magic,
		})
	}
	return positions, nil
}

func (g *GatewayAdapter) PendingOrders(ctx context.Context, symbol string) ([]*domain.PendingOrder, error) {
	var raw struct {
		List []struct {
			Ticket     int64   `json:"ticket"`
			Symbol     string  `json:"symbol"`
			Type       int     `json:"type"`
			TypeName   string  `json:"typeName"`
			Volume     float64 `json:"volume"`
			Price      float64 `json:"price"`
			StopLoss   float64 `json:"sl"`
			TakeProfit float64 `json:"tp"`
			Magic      int64   `json:"magic"`
		} `json:"list"`
	}
	if err := g.call(ctx, "GET", "/api/v1/orders?symbol="+symbol, nil, &raw); err != nil {
		return nil, err
	}

	orders := make([]*domain.PendingOrder, 0, len(raw.List))
	for _, o := range raw.List {
		orders = append(orders, &domain.PendingOrder{
			Ticket:     o.Ticket,
			Symbol:     o.Symbol,
			Type:       o.Type,
			TypeName:   o.TypeName,
			Volume:     o.Volume,
			Price:      o.Price,
			StopLoss:   o.StopLoss,
			TakeProfit: o.TakeProfit,
			Magic:      o.Magic,
		})
	}
	return orders, nil
}

func (g *GatewayAdapter) ClosedPositions(ctx context.Context, from, to time.Time) ([]*domain.ClosedPosition, error) {
	path := fmt.Sprintf("/api/v1/history?from=%d&to=%d", from.Unix(), to.Unix())
	var raw struct {
		List []struct {
			Ticket     int64   `json:"ticket"`
			Symbol     string  `json:"symbol"`
			Profit     float64 `json:"profit"`
			Commission float64 `json:"commission"`
			Swap       float64 `json:"swap"`
			Magic      int64   `json:"magic"`
			ClosedAt   int64   `json:"closedAt"`
		} `json:"list"`
	}
	if err := g.call(ctx, "GET", path, nil, &raw); err != nil {
		return nil, err
	}

	closed := make([]*domain.ClosedPosition, 0, len(raw.List))
	for _, c := range raw.List {
		closed = append(closed, &domain.ClosedPosition{
			Ticket:     c.Ticket,
			Symbol:     c.Symbol,
			Profit:     c.Profit,
			Commission: c.Commission,
			Swap:       c.Swap,
			Magic:      c.Magic,
			ClosedAt:   time.Unix(c.ClosedAt, 0),
		})
	}
	return closed, nil
}

func (g *GatewayAdapter) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	if price, ok := g.prices[symbol]; ok && price > 0 {
		g.mu.Unlock()
		return price, nil
	}
	g.mu.Unlock()

	var raw struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	}
	if err := g.call(ctx, "GET", "/api/v1/price?symbol="+symbol, nil, &raw); err != nil {
		return 0, err
	}
	if raw.Bid <= 0 {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return (raw.Bid + raw.Ask) / 2, nil
}

func (g *GatewayAdapter) OpenPendingOrder(ctx context.Context, spec *domain.OrderSpec) (int64, error) {
	payload := map[string]interface{}{
		"symbol":  spec.Symbol,
		"type":    string(spec.Kind),
		"volume":  spec.Volume,
		"price":   spec.Price,
		"magic":   spec.Magic,
		"comment": spec.Strategy,
	}
	if spec.StopLoss > 0 {
		payload["sl"] = spec.StopLoss
	}
	if spec.TakeProfit > 0 {
		payload["tp"] = spec.TakeProfit
	}
	if spec.Trailing {
		payload["trailing"] = true
		payload["trailingStep"] = spec.TrailingStep
	}

	var raw struct {
		Ticket int64 `json:"ticket"`
	}
	if err := g.call(ctx, "POST", "/api/v1/order/create", payload, &raw); err != nil {
		return 0, err
	}
	return raw.Ticket, nil
}

func (g *GatewayAdapter) ClosePosition(ctx context.Context, symbol string, ticket int64) error {
	payload := map[string]interface{}{
		"symbol": symbol,
		"ticket": ticket,
	}
	return g.call(ctx, "POST", "/api/v1/position/close", payload, nil)
}

func (g *GatewayAdapter) CloseAllPositions(ctx context.Context) error {
	return g.call(ctx, "POST", "/api/v1/position/close-all", map[string]interface{}{}, nil)
}

func (g *GatewayAdapter) CancelPendingOrder(ctx context.Context, ticket int64) error {
	payload := map[string]interface{}{
		"ticket": ticket,
	}
	return g.call(ctx, "POST", "/api/v1/order/cancel", payload, nil)
}

func (g *GatewayAdapter) CancelAllPendingOrders(ctx context.Context) error {
	return g.call(ctx, "POST", "/api/v1/order/cancel-all", map[string]interface{}{}, nil)
}

func (g *GatewayAdapter) UpdatePosition(ctx context.Context, symbol string, ticket int64, stopLoss, takeProfit float64) error {
	payload := map[string]interface{}{
		"symbol": symbol,
		"ticket": ticket,
		"sl":     stopLoss,
		"tp":     takeProfit,
	}
	return g.call(ctx, "POST", "/api/v1/position/modify", payload, nil)
}

// --- WebSocket ---

func (g *GatewayAdapter) OnPriceUpdate(callback func(symbol string, price float64)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, callback)
}

func (g *GatewayAdapter) ConnectWS(symbols []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.wsConn != nil {
		return g.subscribe(symbols)
	}

	c, _, err := websocket.DefaultDialer.Dial(g.wsURL, nil)
	if err != nil {
		return err
	}
	g.wsConn = c

	go g.readLoop()

	return g.subscribe(symbols)
}

func (g *GatewayAdapter) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": symbols,
	}
	return g.wsConn.WriteJSON(subMsg)
}

func (g *GatewayAdapter) readLoop() {
	defer func() {
		g.wsConn.Close()
		g.mu.Lock()
		g.wsConn = nil
		g.mu.Unlock()
	}()

	for {
		_, message, err := g.wsConn.ReadMessage()
		if err != nil {
			log.Println("WS read error:", err)
			close(g.wsDone)
			return
		}

		var tick struct {
			Symbol string  `json:"symbol"`
			Bid    float64 `json:"bid"`
			Ask    float64 `json:"ask"`
		}
		if err := json.Unmarshal(message, &tick); err != nil || tick.Symbol == "" {
			continue
		}

		price := (tick.Bid + tick.Ask) / 2
		g.mu.Lock()
		g.prices[tick.Symbol] = price
		callbacks := make([]func(string, float64), len(g.callbacks))
		copy(callbacks, g.callbacks)
		g.mu.Unlock()

		for _, cb := range callbacks {
			cb(tick.Symbol, price)
		}
	}
}

func (g *GatewayAdapter) Done() <-chan struct{} {
	return g.wsDone
}
