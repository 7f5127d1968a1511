package contracts

type WebhookDispatcher interface {
	SetWebhookUrl(sheetId string, canonicalCellId string, webhookUrl string)
	GetWebhookUrl(sheetId string, canonicalCellId string) string

	// Notify pushes recomputed cells to their subscribed webhooks. Delivery
	// is asynchronous and best-effort.
	Notify(sheetId string, cells []*Cell)

	Start()
	Close()
}
