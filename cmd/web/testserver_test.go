package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/myrjola/flowcast/internal/e2etest"
	"github.com/stretchr/testify/require"
)

// fakeChannel stands in for the WhatsApp Cloud API and rejects messages to the numbers in reject.
type fakeChannel struct {
	server *httptest.Server
	reject map[string]bool

	mu sync.Mutex
	to []string
}

func newFakeChannel(t *testing.T, reject ...string) *fakeChannel {
	t.Helper()
	c := &fakeChannel{reject: make(map[string]bool), to: nil, server: nil}
	for _, number := range reject {
		c.reject[number] = true
	}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			To string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.to = append(c.to, payload.To)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if c.reject[payload.To] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Recipient phone number not in allowed list","code":131030}}`)
			return
		}
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.test"}]}`)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeChannel) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.to...)
}

// startTestServer runs the API on a random port with an in-memory database. A nil channel leaves the channel
// credentials unset.
func startTestServer(t *testing.T, channel *fakeChannel) *e2etest.Server {
	t.Helper()
	env := map[string]string{
		"FLOWCAST_ADDR":                "localhost:0",
		"FLOWCAST_SQLITE_URL":          ":memory:",
		"FLOWCAST_DELAY_AFTER_SUCCESS": "0s",
		"FLOWCAST_DELAY_AFTER_FAILURE": "0s",
	}
	if channel != nil {
		env["WHATSAPP_BASE_URL"] = channel.server.URL + "/v22.0/"
		env["WHATSAPP_TOKEN"] = "test-token"
		env["WHATSAPP_PHONE_NUMBER_ID"] = "1234"
	}
	lookupEnv := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	server, err := e2etest.StartServer(t.Context(), io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return server
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v) //nolint:wrapcheck // test helper.
}
