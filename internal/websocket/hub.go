package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every client watching the account after a
// movement or reversal is posted.
type BalanceUpdate struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	VoucherNo string `json:"voucher_no"`
}

// Hub fans balance updates out to websocket clients, keyed by the account
// they subscribed to.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[accountID] == nil {
		h.watchers[accountID] = make(map[*Client]struct{})
	}
	h.watchers[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[accountID] == nil {
		return
	}
	delete(h.watchers[accountID], client)
	if len(h.watchers[accountID]) == 0 {
		delete(h.watchers, accountID)
	}
}

func (h *Hub) BroadcastBalance(accountID string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.watchers[accountID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
