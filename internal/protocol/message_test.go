package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, err := NewMessage(TypeLobbyJoin, LobbyJoinData{PlayerName: "Alice"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	line, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Error("Expected encoded frame to end with LF")
	}

	got, err := Decode(bytes.TrimSuffix(line, []byte("\n")))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != TypeLobbyJoin {
		t.Errorf("Type = %q, want %q", got.Type, TypeLobbyJoin)
	}

	var data LobbyJoinData
	if err := DecodeData(got, &data); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if data.PlayerName != "Alice" {
		t.Errorf("PlayerName = %q, want Alice", data.PlayerName)
	}
}

func TestNewMessageStampsTimestamp(t *testing.T) {
	before := Epoch(time.Now())
	m, err := NewMessage(TypePing, nil)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	after := Epoch(time.Now())

	if m.Timestamp < before || m.Timestamp > after {
		t.Errorf("Timestamp %f outside [%f, %f]", m.Timestamp, before, after)
	}
}

func TestNewMessageNilPayload(t *testing.T) {
	m, err := NewMessage(TypePing, nil)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if string(m.Data) != "{}" {
		t.Errorf("Data = %s, want empty object", m.Data)
	}
}

func TestDecodeMissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"data":{},"timestamp":1}`)); err == nil {
		t.Error("Expected error for frame without type tag")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"ping"`)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

// Unknown tags must decode cleanly so the dispatcher can log and skip them.
func TestDecodeUnknownTypeTolerated(t *testing.T) {
	m, err := Decode([]byte(`{"type":"future_feature","data":{"x":1},"timestamp":1}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Type != "future_feature" {
		t.Errorf("Type = %q", m.Type)
	}
}

func TestTimerStateNullEpochOnWire(t *testing.T) {
	raw, err := json.Marshal(TimerState{
		TurnStartEpoch:     nil,
		ElapsedBeforePause: 7.5,
		MoveTimeLimit:      30,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"turn_start_epoch":null`)) {
		t.Errorf("paused timer must serialize a null epoch, got %s", raw)
	}

	var back TimerState
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.TurnStartEpoch != nil {
		t.Error("Expected nil epoch after round trip")
	}
	if back.ElapsedBeforePause != 7.5 {
		t.Errorf("ElapsedBeforePause = %f", back.ElapsedBeforePause)
	}
}

func TestEpochSecondsResolution(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 500_000_000, time.UTC)
	got := Epoch(ts)
	want := float64(ts.Unix()) + 0.5
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Epoch = %f, want %f", got, want)
	}
}
