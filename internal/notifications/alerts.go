package notifications

import (
	"fmt"
	"html"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/payloads"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/registry"
)

var decoders = newDecoders()

func newDecoders() *registry.DecoderRegistry {
	r := registry.NewDecoderRegistry()
	r.Register(enums.EventQCResultRecorded, 1, registry.JSONDecoder[payloads.QCResultRecordedEvent]())
	r.Register(enums.EventStockLow, 1, registry.JSONDecoder[payloads.StockLowEvent]())
	return r
}

// decodePayload resolves the versioned payload of envelope into *T.
func decodePayload[T any](eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*T, error) {
	version := envelope.Version
	if version == 0 {
		version = 1
	}
	decoded, err := decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		return nil, err
	}
	payload, ok := decoded.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", decoded, eventType)
	}
	return payload, nil
}

// alertBuilder turns an envelope into an alert. A nil alert means the event
// is acknowledged without sending anything.
type alertBuilder func(envelope outbox.PayloadEnvelope) (*Alert, error)

func qcFailedAlert(envelope outbox.PayloadEnvelope) (*Alert, error) {
	payload, err := decodePayload[payloads.QCResultRecordedEvent](enums.EventQCResultRecorded, envelope)
	if err != nil {
		return nil, fmt.Errorf("decode qc result: %w", err)
	}
	if payload.Status != enums.QCStatusFailed {
		return nil, nil
	}

	notes := payload.Notes
	if notes == "" {
		notes = "no notes recorded"
	}
	body := fmt.Sprintf(`<html><body>
<p>Quality control rejected a line of order <b>%s</b>.</p>
<table>
<tr><td>Batch</td><td>%s</td></tr>
<tr><td>Item</td><td>%s (%s)</td></tr>
<tr><td>Quantity</td><td>%d %s</td></tr>
<tr><td>Inspector</td><td>%s</td></tr>
<tr><td>Notes</td><td>%s</td></tr>
</table>
</body></html>`,
		html.EscapeString(payload.OrderNumber),
		html.EscapeString(payload.BatchNumber),
		html.EscapeString(payload.ItemName), html.EscapeString(payload.ItemCode),
		payload.Quantity, html.EscapeString(payload.Unit),
		html.EscapeString(payload.ProcessedBy),
		html.EscapeString(notes),
	)
	return &Alert{
		Subject:  fmt.Sprintf("QC failed: %s %s", payload.OrderNumber, payload.ItemCode),
		HTMLBody: body,
	}, nil
}

func lowStockAlert(envelope outbox.PayloadEnvelope) (*Alert, error) {
	payload, err := decodePayload[payloads.StockLowEvent](enums.EventStockLow, envelope)
	if err != nil {
		return nil, fmt.Errorf("decode stock low: %w", err)
	}
	if payload.ItemCode == "" {
		return nil, fmt.Errorf("item code missing")
	}
	body := fmt.Sprintf(`<html><body>
<p>Item <b>%s</b> (%s) is running low.</p>
<p>Available: %d %s. Minimum: %d.</p>
</body></html>`,
		html.EscapeString(payload.ItemCode), html.EscapeString(payload.Name),
		payload.AvailableQuantity, html.EscapeString(payload.Unit), payload.MinStock,
	)
	return &Alert{
		Subject:  fmt.Sprintf("Low stock: %s (%d left)", payload.ItemCode, payload.AvailableQuantity),
		HTMLBody: body,
	}, nil
}
