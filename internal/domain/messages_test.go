package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"subscribe","tokens":["addr1","addr2"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != MessageSubscribe {
		t.Errorf("Type = %q, want subscribe", msg.Type)
	}
	if len(msg.Tokens) != 2 || msg.Tokens[0] != "addr1" {
		t.Errorf("Tokens = %v", msg.Tokens)
	}
}

func TestDecodeClientMessageUnsubscribe(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"unsubscribe"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != MessageUnsubscribe {
		t.Errorf("Type = %q, want unsubscribe", msg.Type)
	}
	if len(msg.Tokens) != 0 {
		t.Errorf("Tokens = %v, want empty", msg.Tokens)
	}
}

func TestDecodeClientMessageRejectsUnknownType(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{"type":"ping"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := DecodeClientMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestNewPriceUpdateWireFormat(t *testing.T) {
	update := NewPriceUpdate(Token{
		Address:       "addr1",
		PriceSOL:      0.005,
		PriceChange1h: -2.4,
	})

	data, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["type"] != "price_update" {
		t.Errorf("type = %v", wire["type"])
	}
	if wire["token_address"] != "addr1" {
		t.Errorf("token_address = %v", wire["token_address"])
	}
	if wire["price_1hr_change"] != -2.4 {
		t.Errorf("price_1hr_change = %v", wire["price_1hr_change"])
	}
}

func TestNewVolumeSpikePercent(t *testing.T) {
	spike := NewVolumeSpike("addr1", 100, 180)
	if spike.VolumeChangePercent != 80 {
		t.Errorf("VolumeChangePercent = %f, want 80", spike.VolumeChangePercent)
	}
	if spike.NewVolume != 180 {
		t.Errorf("NewVolume = %f, want 180", spike.NewVolume)
	}
	if spike.Type != MessageVolumeSpike {
		t.Errorf("Type = %q", spike.Type)
	}
}
