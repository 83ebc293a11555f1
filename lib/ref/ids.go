// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxIDLength bounds identifier strings. Portal identifiers are UUIDs
// or short prefixed tokens ("msg_01HV..."); anything longer indicates
// a corrupted or hostile payload.
const maxIDLength = 128

// validateID checks the structural rules shared by all portal
// identifiers: non-empty, bounded length, and printable ASCII with no
// whitespace. The server assigns identifiers; the client only ever
// round-trips them, so the rules are deliberately loose.
func validateID(kind, raw string) error {
	if raw == "" {
		return fmt.Errorf("ref: empty %s", kind)
	}
	if len(raw) > maxIDLength {
		return fmt.Errorf("ref: %s exceeds %d bytes", kind, maxIDLength)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c <= ' ' || c > '~' {
			return fmt.Errorf("ref: %s contains invalid byte 0x%02x at offset %d", kind, c, i)
		}
	}
	return nil
}

// UserID identifies a portal user account.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw user identifier.
func ParseUserID(raw string) (UserID, error) {
	if err := validateID("user ID", raw); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// String returns the raw identifier string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset identifier).
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MessageID identifies a single message.
type MessageID struct {
	id string
}

// ParseMessageID validates and wraps a raw message identifier.
func ParseMessageID(raw string) (MessageID, error) {
	if err := validateID("message ID", raw); err != nil {
		return MessageID{}, err
	}
	return MessageID{id: raw}, nil
}

// String returns the raw identifier string.
func (m MessageID) String() string { return m.id }

// IsZero reports whether the MessageID is the zero value.
func (m MessageID) IsZero() bool { return m.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (m MessageID) MarshalText() ([]byte, error) { return []byte(m.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MessageID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = MessageID{}
		return nil
	}
	parsed, err := ParseMessageID(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ConversationID identifies a conversation (direct or group thread).
type ConversationID struct {
	id string
}

// ParseConversationID validates and wraps a raw conversation identifier.
func ParseConversationID(raw string) (ConversationID, error) {
	if err := validateID("conversation ID", raw); err != nil {
		return ConversationID{}, err
	}
	return ConversationID{id: raw}, nil
}

// String returns the raw identifier string.
func (c ConversationID) String() string { return c.id }

// IsZero reports whether the ConversationID is the zero value.
func (c ConversationID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (c ConversationID) MarshalText() ([]byte, error) { return []byte(c.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConversationID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = ConversationID{}
		return nil
	}
	parsed, err := ParseConversationID(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// NotificationID identifies a notification entry.
type NotificationID struct {
	id string
}

// ParseNotificationID validates and wraps a raw notification identifier.
func ParseNotificationID(raw string) (NotificationID, error) {
	if err := validateID("notification ID", raw); err != nil {
		return NotificationID{}, err
	}
	return NotificationID{id: raw}, nil
}

// String returns the raw identifier string.
func (n NotificationID) String() string { return n.id }

// IsZero reports whether the NotificationID is the zero value.
func (n NotificationID) IsZero() bool { return n.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (n NotificationID) MarshalText() ([]byte, error) { return []byte(n.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NotificationID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*n = NotificationID{}
		return nil
	}
	parsed, err := ParseNotificationID(string(data))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
