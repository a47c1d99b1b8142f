// Package notification defines the fixed taxonomy of real-time messages
// and their wire encoding.
package notification

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the category of event a message represents.
//
// The set is closed: producers pick one of the constants below, never a
// free-form string. Wire values match what the web and mobile clients
// already switch on.
type Kind string

const (
	KindMissionAssigned    Kind = "mission_assigned"
	KindMissionValidated   Kind = "mission_validated"
	KindMissionRejected    Kind = "mission_rejected"
	KindClanInvite         Kind = "clan_invite"
	KindClanMessage        Kind = "clan_message"
	KindNewAchievement     Kind = "new_achievement"
	KindSystemAnnouncement Kind = "system_announcement"
	KindDailyChallenge     Kind = "daily_challenge"
	KindEventStarted       Kind = "event_started"
	KindPowerupExpired     Kind = "powerup_expired"
)

var kinds = map[Kind]struct{}{
	KindMissionAssigned:    {},
	KindMissionValidated:   {},
	KindMissionRejected:    {},
	KindClanInvite:         {},
	KindClanMessage:        {},
	KindNewAchievement:     {},
	KindSystemAnnouncement: {},
	KindDailyChallenge:     {},
	KindEventStarted:       {},
	KindPowerupExpired:     {},
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// ParseKind maps a wire string to a Kind. The empty string and unknown
// values are rejected; producers must not invent kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if !k.Valid() {
		return "", fmt.Errorf("unknown notification kind %q", s)
	}
	return k, nil
}

// Message is one fire-and-forget notification.
//
// A Message is handed to the dispatcher and discarded after the fan-out
// attempt; it is never queued, retried or persisted. Data carries small
// kind-specific fields (e.g. {"mission_id": 7}).
type Message struct {
	Kind  Kind
	Title string
	Body  string
	Data  map[string]any
}

// envelope is the wire shape pushed to sessions.
// Field names are part of the client contract; do not rename.
type envelope struct {
	Type    Kind           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Encode renders the message as one wire-level JSON object.
// Data is encoded as {} rather than null when empty.
func (m Message) Encode() ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("encode: unknown notification kind %q", m.Kind)
	}
	data := m.Data
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(envelope{
		Type:    m.Kind,
		Title:   m.Title,
		Message: m.Body,
		Data:    data,
	})
}
