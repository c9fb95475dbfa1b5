package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	core, logs := observer.New(zap.DebugLevel)
	client := &http.Client{Transport: NewLoggingTransport(nil, NewZapLogger(zap.New(core)))}

	resp, err := client.Get(server.URL + "/rest/latest/users")
	assert.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("request").All()
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, "GET", entries[0].ContextMap()["method"])
}

func TestLoggingTransportFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client := &http.Client{Transport: NewLoggingTransport(nil, NewZapLogger(zap.New(core)))}

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}
