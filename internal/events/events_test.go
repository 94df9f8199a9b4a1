package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecode_KnownKinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{"message", `{"event":"message","data":{"text":"Oi","channel":"whatsapp"}}`, KindMessage},
		{"lead", `{"event":"lead","data":{"name":"Carlos","email":"carlos@example.com"}}`, KindLead},
		{"conversion", `{"event":"conversion","data":{"campaign_id":"1234567890","value":48.41,"currency":"brl"}}`, KindConversion},
		{"payment", `{"event":"payment","data":{"id":"pay_1","amount":150,"status":"PAID"}}`, KindPayment},
		{"no data", `{"event":"lead"}`, KindLead},
		{"null data", `{"event":"payment","data":null}`, KindPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.kind, ev.Kind())
			require.Equal(t, string(tt.kind), ev.Name())
			require.True(t, ev.Kind().Known())
		})
	}
}

func TestDecode_PayloadFields(t *testing.T) {
	ev, err := Decode([]byte(`{
		"event": "message",
		"data": {
			"id": "msg_42",
			"contact_name": "<b>Maria</b>",
			"channel": " WhatsApp ",
			"text": "Preciso transferir meu carro",
			"sent_at": "2025-01-08T14:30:00Z",
			"extra": {"ignored": true}
		}
	}`))
	require.NoError(t, err)

	msg, ok := ev.(Message)
	require.True(t, ok, "expected Message, got %T", ev)
	require.Equal(t, "msg_42", msg.Payload.ID)
	require.Equal(t, "Maria", msg.Payload.ContactName)
	require.Equal(t, ChannelWhatsApp, msg.Payload.Channel)
	require.Equal(t, "Preciso transferir meu carro", msg.Payload.Text)
	require.NotNil(t, msg.Payload.SentAt)
	require.True(t, msg.Payload.SentAt.Equal(time.Date(2025, 1, 8, 14, 30, 0, 0, time.UTC)))

	ev, err = Decode([]byte(`{"event":"conversion","data":{"value":48.41,"currency":"brl"}}`))
	require.NoError(t, err)
	conv := ev.(Conversion)
	require.Equal(t, "BRL", conv.Payload.Currency)
	require.InDelta(t, 48.41, conv.Payload.Value, 0.0001)

	ev, err = Decode([]byte(`{"event":"payment","data":{"status":" Paid "}}`))
	require.NoError(t, err)
	require.Equal(t, "paid", ev.(Payment).Payload.Status)
}

func TestDecode_Unknown(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"foo","data":[1,2,3]}`))
	require.NoError(t, err)

	unknown, ok := ev.(Unknown)
	require.True(t, ok, "expected Unknown, got %T", ev)
	require.Equal(t, Kind(""), unknown.Kind())
	require.Equal(t, "foo", unknown.Name())
	require.JSONEq(t, `[1,2,3]`, string(unknown.Data))
}

func TestDecode_TagMatchIsExact(t *testing.T) {
	for _, tag := range []string{"Message", "LEAD", " payment", ""} {
		ev, err := Decode([]byte(`{"event":"` + tag + `"}`))
		require.NoError(t, err)
		require.IsType(t, Unknown{}, ev)
		require.Equal(t, tag, ev.Name())
	}
}

func TestDecode_MissingEvent(t *testing.T) {
	ev, err := Decode([]byte(`{"data":{"a":1}}`))
	require.NoError(t, err)
	require.IsType(t, Unknown{}, ev)
	require.Equal(t, "", ev.Name())
}

func TestDecode_NonStringTag(t *testing.T) {
	tests := []struct {
		body string
		name string
	}{
		{`{"event":42,"data":{"a":1}}`, "42"},
		{`{"event":true}`, "true"},
		{`{"event":{"type": "lead"}}`, `{"type":"lead"}`},
		{`{"event":null}`, ""},
	}

	for _, tt := range tests {
		ev, err := Decode([]byte(tt.body))
		require.NoError(t, err, "body %q", tt.body)
		require.IsType(t, Unknown{}, ev)
		require.Equal(t, tt.name, ev.Name())
	}
}

func TestDecode_MalformedBody(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`{"event":"message"`,
		`["message"]`,
	}

	for _, body := range bodies {
		_, err := Decode([]byte(body))
		require.Error(t, err, "body %q", body)

		var payloadErr *PayloadError
		require.False(t, errors.As(err, &payloadErr), "body %q should fail before payload decoding", body)
	}
}

func TestDecode_PayloadErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  Kind
		field string
	}{
		{"data not object", `{"event":"lead","data":"carlos"}`, KindLead, ""},
		{"data array", `{"event":"message","data":[]}`, KindMessage, ""},
		{"wrong field type", `{"event":"payment","data":{"amount":"150"}}`, KindPayment, "amount"},
		{"negative amount", `{"event":"payment","data":{"amount":-1}}`, KindPayment, "amount"},
		{"negative value", `{"event":"conversion","data":{"value":-0.5}}`, KindConversion, "value"},
		{"bad currency", `{"event":"conversion","data":{"currency":"reais"}}`, KindConversion, "currency"},
		{"bad channel", `{"event":"message","data":{"channel":"telegram"}}`, KindMessage, "channel"},
		{"bad email", `{"event":"lead","data":{"email":"carlos.example.com"}}`, KindLead, "email"},
		{"bad timestamp", `{"event":"message","data":{"sent_at":"ontem"}}`, KindMessage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)

			var payloadErr *PayloadError
			require.True(t, errors.As(err, &payloadErr), "expected PayloadError, got %v", err)
			require.Equal(t, tt.kind, payloadErr.Kind)
			if tt.field != "" {
				require.Equal(t, tt.field, payloadErr.Field)
			}
			require.Contains(t, err.Error(), string(tt.kind))
		})
	}
}

func TestParseEnvelope_KeepsRawData(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"lead","data":{"name":"Ana"}}`))
	require.NoError(t, err)
	require.Equal(t, "lead", env.Event)
	require.JSONEq(t, `{"name":"Ana"}`, string(env.Data))

	env, err = ParseEnvelope([]byte(`{"event":"lead","data":null}`))
	require.NoError(t, err)
	require.Nil(t, env.Data)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Quero licenciar meu carro", "Quero licenciar meu carro"},
		{"<b>Olá</b> tudo bem?", "Olá tudo bem?"},
		{"<script>alert(1)</script>Oi", "Oi"},
		{"João's car & bike", "João&#39;s car &amp; bike"},
		{"5 < 6", "5 &lt; 6"},
		{"  espaços  ", "espaços"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;Oi", "Oi"},
		{"&lt;img src=x onerror=alert(1)&gt;", ""},
		{"&amp;lt;b&amp;gt;Oi&amp;lt;/b&amp;gt;", "Oi"},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode_EncodedMarkupStripped(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"message","data":{"text":"&lt;img src=x onerror=alert(1)&gt;Oi","contact_name":"&lt;b&gt;Ana&lt;/b&gt;"}}`))
	require.NoError(t, err)

	msg := ev.(Message)
	require.Equal(t, "Oi", msg.Payload.Text)
	require.Equal(t, "Ana", msg.Payload.ContactName)
}

func TestPayloadJSON(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"lead","data":{"name":"<i>Ana</i>","email":"ana@example.com","extra":1}}`))
	require.NoError(t, err)

	data, err := PayloadJSON(ev)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Ana","email":"ana@example.com"}`, string(data))

	data, err = PayloadJSON(Unknown{Tag: "foo", Data: []byte(`{"x":"<b>"}`)})
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestKind_Known(t *testing.T) {
	for _, k := range Kinds {
		require.True(t, k.Known())
	}
	require.False(t, Kind("foo").Known())
	require.False(t, Kind("").Known())
}
