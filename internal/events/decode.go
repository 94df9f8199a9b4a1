package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNotObject = errors.New("data must be a JSON object")

// Envelope is the wire shape of a delivery: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PayloadError reports data that does not match the schema of its kind.
type PayloadError struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *PayloadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s payload: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s payload: %v", e.Kind, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// ParseEnvelope parses a request body; data is kept raw. A tag that is not a
// JSON string cannot name a known kind, so it is kept as its compact JSON
// text and resolves to Unknown.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var wire struct {
		Event json.RawMessage `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parsing webhook body: %w", err)
	}

	env := &Envelope{Data: wire.Data}
	if isNull(env.Data) {
		env.Data = nil
	}

	tag := bytes.TrimSpace(wire.Event)
	switch {
	case isNull(tag):
	case tag[0] == '"':
		if err := json.Unmarshal(tag, &env.Event); err != nil {
			return nil, fmt.Errorf("parsing webhook event: %w", err)
		}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, tag); err != nil {
			return nil, fmt.Errorf("parsing webhook event: %w", err)
		}
		env.Event = buf.String()
	}
	return env, nil
}

// Decode parses body and resolves it into an Event in one step.
func Decode(body []byte) (Event, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	return env.Resolve()
}

// Resolve classifies the envelope by exact tag match. Recognized tags get a
// decoded, normalized and validated payload; anything else becomes Unknown.
func (e *Envelope) Resolve() (Event, error) {
	switch Kind(e.Event) {
	case KindMessage:
		var p MessagePayload
		if err := decodePayload(KindMessage, e.Data, &p); err != nil {
			return nil, err
		}
		p.normalize()
		if err := p.validate(); err != nil {
			return nil, err
		}
		return Message{Payload: p}, nil

	case KindLead:
		var p LeadPayload
		if err := decodePayload(KindLead, e.Data, &p); err != nil {
			return nil, err
		}
		p.normalize()
		if err := p.validate(); err != nil {
			return nil, err
		}
		return Lead{Payload: p}, nil

	case KindConversion:
		var p ConversionPayload
		if err := decodePayload(KindConversion, e.Data, &p); err != nil {
			return nil, err
		}
		p.normalize()
		if err := p.validate(); err != nil {
			return nil, err
		}
		return Conversion{Payload: p}, nil

	case KindPayment:
		var p PaymentPayload
		if err := decodePayload(KindPayment, e.Data, &p); err != nil {
			return nil, err
		}
		p.normalize()
		if err := p.validate(); err != nil {
			return nil, err
		}
		return Payment{Payload: p}, nil

	default:
		return Unknown{Tag: e.Event, Data: e.Data}, nil
	}
}

func decodePayload(kind Kind, data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return &PayloadError{Kind: kind, Err: errNotObject}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &PayloadError{Kind: kind, Field: typeErr.Field, Err: fmt.Errorf("expected %s", typeErr.Type)}
		}
		return &PayloadError{Kind: kind, Err: err}
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

func (p *MessagePayload) normalize() {
	p.ContactName = Sanitize(p.ContactName)
	p.Text = Sanitize(p.Text)
	p.Channel = strings.ToLower(strings.TrimSpace(p.Channel))
	p.Phone = strings.TrimSpace(p.Phone)
}

func (p *MessagePayload) validate() error {
	switch p.Channel {
	case "", ChannelWhatsApp, ChannelInstagram, ChannelSite, ChannelEmail:
		return nil
	}
	return &PayloadError{
		Kind:  KindMessage,
		Field: "channel",
		Err:   fmt.Errorf("unsupported channel %q", p.Channel),
	}
}

func (p *LeadPayload) normalize() {
	p.Name = Sanitize(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
}

func (p *LeadPayload) validate() error {
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return &PayloadError{Kind: KindLead, Field: "email", Err: errors.New("not an email address")}
	}
	return nil
}

func (p *ConversionPayload) normalize() {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
}

func (p *ConversionPayload) validate() error {
	if p.Value < 0 {
		return &PayloadError{Kind: KindConversion, Field: "value", Err: errors.New("must not be negative")}
	}
	if err := validateCurrency(p.Currency); err != nil {
		return &PayloadError{Kind: KindConversion, Field: "currency", Err: err}
	}
	return nil
}

func (p *PaymentPayload) normalize() {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
}

func (p *PaymentPayload) validate() error {
	if p.Amount < 0 {
		return &PayloadError{Kind: KindPayment, Field: "amount", Err: errors.New("must not be negative")}
	}
	if err := validateCurrency(p.Currency); err != nil {
		return &PayloadError{Kind: KindPayment, Field: "currency", Err: err}
	}
	return nil
}

func validateCurrency(code string) error {
	if code == "" {
		return nil
	}
	if len(code) != 3 {
		return fmt.Errorf("%q is not a three-letter currency code", code)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%q is not a three-letter currency code", code)
		}
	}
	return nil
}
