package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/classroom/pkg/observability"
)

func TestAuditLogger_LogFromRequest(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(observability.NewLogger(observability.InfoLevel, &buf))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	req.RemoteAddr = "10.0.0.5:4321"

	al.LogFromRequest(req, ActionLogin, "", "alice", StatusFailure, errors.New("invalid username or password"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ActionLogin, entry["action"])
	assert.Equal(t, StatusFailure, entry["status"])
	assert.Equal(t, "alice", entry["subject"])
	assert.Equal(t, "10.0.0.5", entry["ip"])
	assert.Equal(t, "curl/8.0", entry["user_agent"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, true, entry["audit"])
	assert.NotContains(t, entry, "actor")
}

func TestAuditLogger_DropsIncompleteEvents(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(observability.NewLogger(observability.InfoLevel, &buf))

	al.Log(AuditEvent{Status: StatusSuccess})
	al.Log(AuditEvent{Action: ActionRegister})
	assert.Zero(t, buf.Len())

	var nilLogger *AuditLogger
	assert.NotPanics(t, func() { nilLogger.Log(AuditEvent{Action: ActionLogin, Status: StatusSuccess}) })
	assert.NotPanics(t, func() {
		nilLogger.LogFromRequest(httptest.NewRequest(http.MethodGet, "/", nil), ActionLogin, "", "", StatusSuccess, nil)
	})
}

func TestAuditLogger_TrustedProxies(t *testing.T) {
	var buf bytes.Buffer
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	al := NewAuditLogger(observability.NewLogger(observability.InfoLevel, &buf)).WithTrustedProxies(proxies)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	req.Header.Set("X-Forwarded-For", "203.0.113.8")
	al.LogFromRequest(req, ActionLogin, "alice", "alice", StatusSuccess, nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.8", entry["ip"])
}
