package mq

import (
	"testing"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

func TestNewStockUpdatedMessage(t *testing.T) {
	variant := int64(7)
	actor := int64(42)
	event := &domain.StockUpdatedEvent{
		ProductID:     100,
		VariantID:     &variant,
		LocationID:    10,
		NewQuantity:   25,
		TransactionID: 9001,
		MovementType:  domain.MovementSale,
		UserID:        &actor,
	}

	msg, err := NewStockUpdatedMessage(event, "trace-1")
	if err != nil {
		t.Fatalf("NewStockUpdatedMessage failed: %v", err)
	}

	if msg.ID == "" {
		t.Error("expected generated message id")
	}
	if msg.Type != MessageTypeStockUpdated {
		t.Errorf("expected type %q, got %q", MessageTypeStockUpdated, msg.Type)
	}
	if msg.TraceID != "trace-1" {
		t.Errorf("expected trace id propagated, got %q", msg.TraceID)
	}
	if msg.RoutingKey() != "stock.updated" {
		t.Errorf("expected routing key stock.updated, got %q", msg.RoutingKey())
	}
	if time.Since(msg.Timestamp) > time.Minute {
		t.Error("expected recent timestamp")
	}

	// the payload must survive the wire round trip
	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded StockMessage
	if err := decoded.FromJSON(raw); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}

	var data StockUpdatedData
	if err := decoded.GetDataAs(&data); err != nil {
		t.Fatalf("GetDataAs failed: %v", err)
	}
	if data.ProductID != 100 || data.LocationID != 10 || data.NewQuantity != 25 {
		t.Errorf("unexpected payload: %+v", data)
	}
	if data.VariantID == nil || *data.VariantID != 7 {
		t.Errorf("expected variant 7, got %v", data.VariantID)
	}
	if data.MovementType != domain.MovementSale {
		t.Errorf("expected movement type sale, got %q", data.MovementType)
	}
	if data.UserID == nil || *data.UserID != 42 {
		t.Errorf("expected user 42, got %v", data.UserID)
	}
}

func TestStockMessage_GetDataAsEmpty(t *testing.T) {
	msg := &StockMessage{Type: MessageTypeStockUpdated}

	var data StockUpdatedData
	if err := msg.GetDataAs(&data); err == nil {
		t.Error("expected error for message without data")
	}
}
