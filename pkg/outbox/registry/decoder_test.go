package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventQCResultRecorded, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"status":"FAILED"}`)
	output, err := reg.Decode(enums.EventQCResultRecorded, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["status"] != "FAILED" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventQCResultRecorded, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}

func TestJSONDecoder(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventStockLow, 1, JSONDecoder[payloads.StockLowEvent]())

	out, err := reg.Decode(enums.EventStockLow, 1, json.RawMessage(`{"item_code":"SKU-1","available_quantity":2,"min_stock":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	evt, ok := out.(*payloads.StockLowEvent)
	if !ok || evt.ItemCode != "SKU-1" || evt.MinStock != 5 {
		t.Fatalf("unexpected payload %+v", out)
	}
}
