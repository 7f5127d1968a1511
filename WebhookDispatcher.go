package main

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/tliron/commonlog"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

type SheetWebhooks map[string]string

type WebhookSendCommand struct {
	Webhook string
	Cell    *contracts.Cell
}

// WebhookDispatcher pushes recomputed cell values to subscribed URLs from a
// pool of sender workers. Delivery is best-effort; failures are logged and
// dropped.
type WebhookDispatcher struct {
	queue    chan WebhookSendCommand
	webhooks map[string]SheetWebhooks
	workers  int
	pending  sync.WaitGroup
	mu       sync.RWMutex
	log      commonlog.Logger
}

func NewWebhookDispatcher(workers int) *WebhookDispatcher {
	return &WebhookDispatcher{
		queue:    make(chan WebhookSendCommand, 20),
		webhooks: map[string]SheetWebhooks{},
		workers:  workers,
		log:      commonlog.GetLogger("webhook-dispatcher"),
	}
}

func (manager *WebhookDispatcher) SetWebhookUrl(sheetId string, canonicalCellId string, webhookUrl string) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if _, ok := manager.webhooks[sheetId]; !ok {
		manager.webhooks[sheetId] = SheetWebhooks{}
	}

	if webhookUrl == "" {
		delete(manager.webhooks[sheetId], canonicalCellId)
	} else {
		manager.webhooks[sheetId][canonicalCellId] = webhookUrl
	}
}

func (manager *WebhookDispatcher) GetWebhookUrl(sheetId string, canonicalCellId string) string {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	if sheetWebhooks, ok := manager.webhooks[sheetId]; ok {
		return sheetWebhooks[canonicalCellId]
	}
	return ""
}

func (manager *WebhookDispatcher) Notify(sheetId string, cells []*contracts.Cell) {
	manager.mu.RLock()
	_, ok := manager.webhooks[sheetId]
	manager.mu.RUnlock()
	if !ok {
		return
	}

	manager.pending.Add(1)
	go manager.addToQueue(sheetId, cells)
}

func (manager *WebhookDispatcher) addToQueue(sheetId string, cells []*contracts.Cell) {
	defer manager.pending.Done()

	for _, cell := range cells {
		if webhook := manager.GetWebhookUrl(sheetId, cell.Key); webhook != "" {
			manager.queue <- WebhookSendCommand{
				Webhook: webhook,
				Cell:    cell,
			}
		}
	}
}

func (manager *WebhookDispatcher) Start() {
	for i := 0; i < manager.workers; i++ {
		go manager.runWebhookSenderWorker()
	}
}

// Close waits for in-flight Notify calls to finish enqueueing, then stops
// the sender workers once the queue drains.
func (manager *WebhookDispatcher) Close() {
	manager.pending.Wait()
	close(manager.queue)
}

func (manager *WebhookDispatcher) runWebhookSenderWorker() {
	client := &http.Client{
		Timeout: time.Second * 5,
	}

	for command := range manager.queue {
		payload, _ := json.Marshal(command.Cell)
		response, err := client.Post(command.Webhook, "application/json", bytes.NewBuffer(payload))

		if err != nil {
			manager.log.Errorf("webhook send error: %s", err.Error())
			continue
		}

		if response.StatusCode >= 300 {
			manager.log.Errorf("unexpected webhook response HTTP status: %s", response.Status)
		}

		// drain and close so the transport can reuse the connection
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}
}
