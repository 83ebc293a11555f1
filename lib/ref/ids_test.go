// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseUserID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := ParseUserID("usr_01HV2K9XQ4")
		if err != nil {
			t.Fatalf("ParseUserID failed: %v", err)
		}
		if id.String() != "usr_01HV2K9XQ4" {
			t.Errorf("unexpected string form: %q", id.String())
		}
		if id.IsZero() {
			t.Error("parsed ID reported as zero")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := ParseUserID(""); err == nil {
			t.Fatal("expected error for empty ID")
		}
	})

	t.Run("whitespace", func(t *testing.T) {
		if _, err := ParseUserID("usr 123"); err == nil {
			t.Fatal("expected error for ID containing a space")
		}
	})

	t.Run("control byte", func(t *testing.T) {
		if _, err := ParseUserID("usr\n123"); err == nil {
			t.Fatal("expected error for ID containing a newline")
		}
	})

	t.Run("too long", func(t *testing.T) {
		if _, err := ParseUserID(strings.Repeat("a", maxIDLength+1)); err == nil {
			t.Fatal("expected error for over-length ID")
		}
	})
}

func TestIDJSONRoundTrip(t *testing.T) {
	type payload struct {
		Message      MessageID      `json:"message_id"`
		Conversation ConversationID `json:"conversation_id"`
	}

	var decoded payload
	input := `{"message_id":"msg_1","conversation_id":"conv_9"}`
	if err := json.Unmarshal([]byte(input), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Message.String() != "msg_1" || decoded.Conversation.String() != "conv_9" {
		t.Errorf("unexpected decode result: %+v", decoded)
	}

	encoded, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != input {
		t.Errorf("round trip mismatch: %s", encoded)
	}
}

func TestIDJSONRejectsInvalid(t *testing.T) {
	var id MessageID
	if err := json.Unmarshal([]byte(`"bad id"`), &id); err == nil {
		t.Fatal("expected error decoding ID with whitespace")
	}
}

func TestIDJSONEmptyIsZero(t *testing.T) {
	var id NotificationID
	if err := json.Unmarshal([]byte(`""`), &id); err != nil {
		t.Fatalf("unmarshal of empty string failed: %v", err)
	}
	if !id.IsZero() {
		t.Error("empty input should produce the zero value")
	}
}

func TestIDAsMapKey(t *testing.T) {
	var m map[UserID]bool
	if err := json.Unmarshal([]byte(`{"usr_1":true,"usr_2":false}`), &m); err != nil {
		t.Fatalf("unmarshal map failed: %v", err)
	}
	key, err := ParseUserID("usr_1")
	if err != nil {
		t.Fatalf("ParseUserID failed: %v", err)
	}
	if !m[key] {
		t.Error("expected usr_1 key to decode to true")
	}
}
