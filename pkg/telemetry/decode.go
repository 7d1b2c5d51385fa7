package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

var ErrDecode = errors.New("telemetry: undecodable payload")

// Fields is a normalized field-slot mapping, e.g. field1..field6 plus
// whatever metadata the API ships alongside (created_at, entry_id).
type Fields map[string]any

// Decode resolves a raw value container into Fields. The result is never
// nil: malformed payloads yield an empty mapping together with an error
// wrapping ErrDecode, absent payloads an empty mapping and no error.
func Decode(p ubibot.Payload) (Fields, error) {
	switch p.Kind {
	case ubibot.PayloadObject:
		if p.Object == nil {
			return Fields{}, nil
		}
		return Fields(p.Object), nil
	case ubibot.PayloadText:
		var m map[string]any
		if err := json.Unmarshal([]byte(p.Text), &m); err != nil {
			DecodeFailures.Inc()
			return Fields{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if m == nil {
			// the string held a JSON null
			return Fields{}, nil
		}
		return Fields(m), nil
	case ubibot.PayloadInvalid:
		DecodeFailures.Inc()
		return Fields{}, fmt.Errorf("%w: unexpected token %.32s", ErrDecode, string(p.Raw))
	default:
		return Fields{}, nil
	}
}
