package notification

import (
	"encoding/json"
	"testing"
)

func TestParseKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    Kind
		wantErr bool
	}{
		{name: "known", raw: "clan_message", want: KindClanMessage},
		{name: "trimmed", raw: "  daily_challenge ", want: KindDailyChallenge},
		{name: "unknown", raw: "mission_started", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "wrong separator", raw: "clan-message", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKind(%q) expected error, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseKind(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	t.Parallel()
	msg := Message{
		Kind:  KindMissionAssigned,
		Title: "Nova Missão!",
		Body:  "Nova missão disponível: Ler um livro",
		Data:  map[string]any{"mission_id": 7},
	}

	b, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal wire object: %v", err)
	}
	for _, key := range []string{"type", "title", "message", "data"} {
		if _, ok := wire[key]; !ok {
			t.Fatalf("wire object missing %q: %s", key, b)
		}
	}
	if string(wire["type"]) != `"mission_assigned"` {
		t.Fatalf("type = %s, want \"mission_assigned\"", wire["type"])
	}
	if string(wire["message"]) != `"Nova missão disponível: Ler um livro"` {
		t.Fatalf("message = %s", wire["message"])
	}
}

func TestEncodeEmptyDataIsObject(t *testing.T) {
	t.Parallel()
	b, err := Message{Kind: KindSystemAnnouncement, Title: "x", Body: "y"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var wire struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Data == nil {
		t.Fatal("data should encode as {}, not null")
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	if _, err := (Message{Kind: "made_up", Title: "x"}).Encode(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
