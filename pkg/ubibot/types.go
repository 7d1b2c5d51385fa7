package ubibot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PayloadKind tells how a value container arrived on the wire.
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota
	PayloadObject
	PayloadText
	PayloadInvalid
)

// Payload is a raw value container. The API serializes the same logical
// payload either as a JSON object or as a JSON-encoded string, depending on
// the endpoint and device.
type Payload struct {
	Kind   PayloadKind
	Object map[string]any
	Text   string
	Raw    json.RawMessage
}

// ObjectPayload builds an object payload.
func ObjectPayload(m map[string]any) Payload {
	return Payload{Kind: PayloadObject, Object: m}
}

// TextPayload builds a string payload.
func TextPayload(s string) Payload {
	return Payload{Kind: PayloadText, Text: s}
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*p = Payload{}

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		p.Kind = PayloadAbsent
	case trimmed[0] == '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		p.Kind = PayloadObject
		p.Object = m
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		p.Kind = PayloadText
		p.Text = s
	default:
		p.Kind = PayloadInvalid
		p.Raw = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PayloadObject:
		return json.Marshal(p.Object)
	case PayloadText:
		return json.Marshal(p.Text)
	case PayloadInvalid:
		return p.Raw, nil
	default:
		return []byte("null"), nil
	}
}

// ChannelID accepts both string and numeric ids.
type ChannelID string

func (id *ChannelID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ChannelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = ChannelID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ChannelID(n.String())
	return nil
}

type Channel struct {
	ChannelID  ChannelID `json:"channel_id"`
	Name       string    `json:"name"`
	LastValues Payload   `json:"last_values"`
}

// envelope carries the status fields the API adds to every response. A
// request can fail with HTTP 200 and result "error".
type envelope struct {
	Result    string `json:"result"`
	ErrorCode string `json:"errorCode"`
	Desp      string `json:"desp"`
}

func (e envelope) failure() error {
	if e.Result != "error" {
		return nil
	}
	return fmt.Errorf("api error %s: %s", e.ErrorCode, e.Desp)
}

type channelsResponse struct {
	envelope
	Channels []Channel `json:"channels"`
}

type feedResponse struct {
	envelope
	Feeds []Payload `json:"feeds"`
}
