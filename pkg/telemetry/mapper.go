package telemetry

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Shape selects which projection of a device's fields is produced.
type Shape int

const (
	ShapeLatest Shape = iota
	ShapeHistory
)

// Quantity is one named physical reading. A nil Value is serialized as null.
type Quantity struct {
	Name  string
	Value *float64
}

// Reading is an ordered set of quantities.
type Reading []Quantity

// Get returns the value of the named quantity and whether it is part of the reading.
func (r Reading) Get(name string) (*float64, bool) {
	for _, q := range r {
		if q.Name == name {
			return q.Value, true
		}
	}
	return nil, false
}

func (r Reading) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := r.writeFields(&buf, false); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Reading) writeFields(buf *bytes.Buffer, leadingComma bool) error {
	for i, q := range r {
		if i > 0 || leadingComma {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(q.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if q.Value == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*q.Value)
		if err != nil {
			return err
		}
		buf.Write(val)
	}
	return nil
}

// FeedRecord is one historical sample. Timestamp is the upstream created_at,
// nil when the entry carried none.
type FeedRecord struct {
	Timestamp *string
	Reading   Reading
}

func (f FeedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	ts, err := json.Marshal(f.Timestamp)
	if err != nil {
		return nil, err
	}
	buf.Write(ts)
	if err := f.Reading.writeFields(&buf, true); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type projection struct {
	quantity string
	field    string
	history  bool
	fallback *float64
}

var zero = 0.0

var projections = map[Kind][]projection{
	SoilSensor: {
		{quantity: "temperature", field: "field1", history: true},
		{quantity: "humidity", field: "field2", history: true},
		{quantity: "soil_temperature", field: "field3", history: true},
		{quantity: "soil_humidity", field: "field4", history: true},
		{quantity: "soil_ec", field: "field5"},
		{quantity: "soil_ph", field: "field6"},
	},
	SmartPlug: {
		{quantity: "switch_status", field: "field1", fallback: &zero},
		{quantity: "socket_voltage", field: "field2", history: true},
		{quantity: "socket_current", field: "field3", history: true},
		{quantity: "socket_power", field: "field4", history: true},
		{quantity: "cumulative_electricity", field: "field5"},
		{quantity: "carbon_dioxide", field: "field6"},
	},
}

// Project maps the numbered field slots of fields onto the named quantities
// of kind. The history shape is a reduced projection. Unknown kinds yield
// an empty reading.
func Project(kind Kind, fields Fields, shape Shape) Reading {
	specs := projections[kind]
	r := make(Reading, 0, len(specs))
	for _, p := range specs {
		if shape == ShapeHistory && !p.history {
			continue
		}
		raw, ok := fields[p.field]
		var v *float64
		if ok {
			v = numeric(raw)
		}
		if !ok && p.fallback != nil {
			f := *p.fallback
			v = &f
		}
		r = append(r, Quantity{Name: p.quantity, Value: v})
	}
	return r
}

// ProjectRecord builds the history record of a single feed entry.
func ProjectRecord(kind Kind, fields Fields) FeedRecord {
	rec := FeedRecord{Reading: Project(kind, fields, ShapeHistory)}
	if ts, ok := fields["created_at"].(string); ok {
		rec.Timestamp = &ts
	}
	return rec
}

// numeric normalizes a raw field value to a number without converting units.
// Values that carry no number are reported as nil.
func numeric(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil
		}
		f = n
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = n
	case map[string]any:
		// last_values wraps each slot as {"value": ..., "created_at": ...}
		inner, ok := v["value"]
		if !ok {
			return nil
		}
		return numeric(inner)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
