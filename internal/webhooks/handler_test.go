package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/despachantemarcelino/hookd/internal/config"
	"github.com/despachantemarcelino/hookd/internal/events"
)

const testWebhookSecret = "test-secret"

type recordingObserver struct {
	mu         sync.Mutex
	deliveries []*events.Delivery
	err        error
}

func (o *recordingObserver) Observe(_ context.Context, d *events.Delivery) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.deliveries = append(o.deliveries, d)
	return nil
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.deliveries)
}

func testHandler(t *testing.T, secret SecretSource) (*Handler, *Dispatcher) {
	t.Helper()

	cors, err := NewCORSPolicy(config.Default().Webhook.CORS)
	require.NoError(t, err)

	dispatcher := NewDispatcher()
	h := NewHandler(NewAuthenticator(secret), dispatcher, cors, 1<<20)
	h.now = func() time.Time { return time.Date(2025, 3, 14, 12, 30, 45, 123000000, time.UTC) }
	return h, dispatcher
}

func doRequest(h http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func authed() map[string]string {
	return map[string]string{HeaderSecret: testWebhookSecret}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func requireCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type, Authorization, X-Webhook-Secret", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestHandler_Preflight(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))

	rec := doRequest(h, http.MethodOptions, "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
	requireCORS(t, rec)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := doRequest(h, method, "", authed())

			require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			require.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
			requireCORS(t, rec)
		})
	}
}

func TestHandler_MethodCheckedBeforeSecret(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))

	rec := doRequest(h, http.MethodGet, "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Unauthorized(t *testing.T) {
	tests := []struct {
		name    string
		secret  SecretSource
		headers map[string]string
	}{
		{"missing header", StaticSecret(testWebhookSecret), nil},
		{"wrong secret", StaticSecret(testWebhookSecret), map[string]string{HeaderSecret: "nope"}},
		{"wrong authorization", StaticSecret(testWebhookSecret), map[string]string{HeaderAuthorization: "nope"}},
		{"prefix of secret", StaticSecret(testWebhookSecret), map[string]string{HeaderSecret: "test-"}},
		{"bearer prefix not stripped", StaticSecret(testWebhookSecret), map[string]string{HeaderAuthorization: "Bearer " + testWebhookSecret}},
		{"no configured secret", StaticSecret(""), map[string]string{HeaderSecret: ""}},
		{"no configured secret with header", StaticSecret(""), map[string]string{HeaderSecret: "anything"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testHandler(t, tt.secret)
			obs := &recordingObserver{}
			h.dispatcher.AddObserver(obs)

			rec := doRequest(h, http.MethodPost, `{"event":"lead","data":{}}`, tt.headers)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			requireCORS(t, rec)
			require.Zero(t, obs.count())
		})
	}
}

func TestHandler_AuthorizationFallback(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))

	rec := doRequest(h, http.MethodPost, `{"event":"lead","data":{}}`, map[string]string{
		HeaderAuthorization: testWebhookSecret,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_SecretHeaderWins(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))

	rec := doRequest(h, http.MethodPost, `{"event":"lead","data":{}}`, map[string]string{
		HeaderSecret:        "wrong",
		HeaderAuthorization: testWebhookSecret,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_SecretReadPerRequest(t *testing.T) {
	t.Setenv("HOOKD_TEST_SECRET", "first")
	h, _ := testHandler(t, EnvSecret("HOOKD_TEST_SECRET"))

	rec := doRequest(h, http.MethodPost, `{"event":"lead"}`, map[string]string{HeaderSecret: "first"})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Setenv("HOOKD_TEST_SECRET", "second")

	rec = doRequest(h, http.MethodPost, `{"event":"lead"}`, map[string]string{HeaderSecret: "first"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(h, http.MethodPost, `{"event":"lead"}`, map[string]string{HeaderSecret: "second"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_KnownEvents(t *testing.T) {
	for _, kind := range events.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))

			var got events.Event
			require.NoError(t, dispatcher.Register(kind, ProcessorFunc(func(_ context.Context, ev events.Event) error {
				got = ev
				return nil
			})))

			rec := doRequest(h, http.MethodPost, `{"event":"`+string(kind)+`","data":{}}`, authed())

			require.Equal(t, http.StatusOK, rec.Code)
			requireCORS(t, rec)

			body := decodeBody(t, rec)
			require.Equal(t, true, body["success"])
			require.Equal(t, "Webhook processed successfully", body["message"])
			require.Equal(t, string(kind), body["event"])
			require.Equal(t, "2025-03-14T12:30:45.123Z", body["timestamp"])

			_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
			require.NoError(t, err)

			require.NotNil(t, got)
			require.Equal(t, kind, got.Kind())
		})
	}
}

func TestHandler_PayloadReachesProcessor(t *testing.T) {
	h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))

	var lead events.Lead
	require.NoError(t, dispatcher.Register(events.KindLead, ProcessorFunc(func(_ context.Context, ev events.Event) error {
		lead = ev.(events.Lead)
		return nil
	})))

	rec := doRequest(h, http.MethodPost,
		`{"event":"lead","data":{"name":"Ana <b>Souza</b>","email":"ana@example.com","source":"google_ads","extra":1}}`,
		authed())

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ana Souza", lead.Payload.Name)
	require.Equal(t, "ana@example.com", lead.Payload.Email)
	require.Equal(t, "google_ads", lead.Payload.Source)
}

func TestHandler_UnknownEvents(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		event string
	}{
		{"unrecognized tag", `{"event":"refund","data":{"x":1}}`, "refund"},
		{"case differs", `{"event":"Lead","data":{}}`, "Lead"},
		{"empty tag", `{"event":"","data":{}}`, ""},
		{"absent tag", `{"data":{}}`, ""},
		{"unknown tag with array data", `{"event":"batch","data":[1,2,3]}`, "batch"},
		{"numeric tag", `{"event":42,"data":{}}`, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))

			var fallbackCalled bool
			dispatcher.SetFallback(ProcessorFunc(func(_ context.Context, ev events.Event) error {
				fallbackCalled = true
				_, ok := ev.(events.Unknown)
				require.True(t, ok)
				return nil
			}))

			rec := doRequest(h, http.MethodPost, tt.body, authed())

			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			require.Equal(t, true, body["success"])
			require.Equal(t, tt.event, body["event"])
			require.True(t, fallbackCalled)
		})
	}
}

func TestHandler_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"event":`},
		{"empty body", ``},
		{"array body", `[1,2]`},
		{"wrong field type", `{"event":"payment","data":{"amount":"ten"}}`},
		{"negative amount", `{"event":"payment","data":{"amount":-1}}`},
		{"bad channel", `{"event":"message","data":{"channel":"fax"}}`},
		{"data not object", `{"event":"lead","data":"hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testHandler(t, StaticSecret(testWebhookSecret))

			rec := doRequest(h, http.MethodPost, tt.body, authed())

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			requireCORS(t, rec)
			body := decodeBody(t, rec)
			require.Equal(t, "Internal server error", body["error"])
			require.NotEmpty(t, body["message"])
		})
	}
}

func TestHandler_ProcessorError(t *testing.T) {
	h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))
	require.NoError(t, dispatcher.Register(events.KindPayment, ProcessorFunc(func(context.Context, events.Event) error {
		return errors.New("gateway unreachable")
	})))

	rec := doRequest(h, http.MethodPost, `{"event":"payment","data":{}}`, authed())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "Internal server error", body["error"])
	require.Contains(t, body["message"], "gateway unreachable")
}

func TestHandler_ObserverError(t *testing.T) {
	h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))
	dispatcher.AddObserver(&recordingObserver{err: errors.New("disk full")})

	rec := doRequest(h, http.MethodPost, `{"event":"lead"}`, authed())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, decodeBody(t, rec)["message"], "disk full")
}

func TestHandler_BodyTooLarge(t *testing.T) {
	h, _ := testHandler(t, StaticSecret(testWebhookSecret))
	h.maxBodySize = 32

	rec := doRequest(h, http.MethodPost, `{"event":"lead","data":{"name":"`+strings.Repeat("a", 64)+`"}}`, authed())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, decodeBody(t, rec)["message"], "exceeds 32 bytes")
}

func TestHandler_ReplaysProcessedEachTime(t *testing.T) {
	h, dispatcher := testHandler(t, StaticSecret(testWebhookSecret))
	obs := &recordingObserver{}
	dispatcher.AddObserver(obs)

	ids := 0
	h.newID = func() string {
		ids++
		return "delivery-" + string(rune('0'+ids))
	}

	payload := `{"event":"conversion","data":{"campaign_id":"c1","value":150}}`
	for i := 0; i < 2; i++ {
		rec := doRequest(h, http.MethodPost, payload, authed())
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Equal(t, 2, obs.count())
	require.Equal(t, "delivery-1", obs.deliveries[0].ID)
	require.Equal(t, "delivery-2", obs.deliveries[1].ID)
	require.JSONEq(t, `{"campaign_id":"c1","value":150}`, string(obs.deliveries[1].Data))
}
