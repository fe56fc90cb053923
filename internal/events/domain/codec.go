package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	ID        string  `json:"id"`
	EventType string  `json:"eventType"`
	Level     string  `json:"level"`
	Name      string  `json:"name"`
	Time      *string `json:"time"`
}

// MarshalJSON writes the flat wire form: envelope keys plus the variant's keys.
func (e Event) MarshalJSON() ([]byte, error) {
	e = e.Normalize()
	fields := map[string]json.RawMessage{}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	env, err := json.Marshal(envelope{
		ID:        e.ID,
		EventType: string(e.Type),
		Level:     string(e.Level),
		Name:      e.Name,
		Time:      e.Time,
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads the discriminator first and decodes the matching variant.
// Unrecognized discriminators decode to the bare envelope with TypeUnknown.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	payload, err := decodePayload(ParseType(env.EventType), data)
	if err != nil {
		return fmt.Errorf("events: decode %s payload: %w", env.EventType, err)
	}
	*e = Event{
		ID:      env.ID,
		Level:   parseLevel(env.Level),
		Name:    env.Name,
		Time:    env.Time,
		Payload: payload,
	}.Normalize()
	return nil
}

func decodePayload(t Type, data []byte) (Payload, error) {
	var (
		payload Payload
		err     error
	)
	switch t {
	case TypeJob:
		var p Job
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeHealth:
		var p Health
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeStatus:
		var p Status
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeFigure:
		var p Figure
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeQuote:
		var p Quote
		err = json.Unmarshal(data, &p)
		payload = p
	case TypePercentage:
		var p Percentage
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeStatistics:
		var p Statistics
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeWeather:
		var p Weather
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeList:
		var p List
		err = json.Unmarshal(data, &p)
		payload = p
	case TypeImage:
		var p Image
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Decode parses one event from its wire form.
func Decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Encode renders an event in its wire form.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// EncodeIndent renders an event as indented JSON for human consumption.
func EncodeIndent(event Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
