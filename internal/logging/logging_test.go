package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// captureLogOutput points the global logger at a buffer for the duration of f.
func captureLogOutput(t *testing.T, level Level, format Format, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := defaultLogger
	InitLoggerTo(&buf, level, format)
	defer func() { defaultLogger = old }()
	f()
	return buf.String()
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestLevelFiltering(t *testing.T) {
	output := captureLogOutput(t, LevelWarn, FormatJSON, func() {
		Debug("hidden debug")
		Info("hidden info")
		Warn("shown warn")
		Error("shown error")
	})
	if strings.Contains(output, "hidden") {
		t.Errorf("messages below warn were logged:\n%s", output)
	}
	if !strings.Contains(output, "shown warn") || !strings.Contains(output, "shown error") {
		t.Errorf("expected warn and error output:\n%s", output)
	}
}

func TestTimestampFormat(t *testing.T) {
	output := captureLogOutput(t, LevelInfo, FormatJSON, func() {
		Info("stamped")
	})
	m := decodeLine(t, output)
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time field missing: %v", m)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestTextFormat(t *testing.T) {
	output := captureLogOutput(t, LevelInfo, FormatText, func() {
		Info("plain", "key", "value")
	})
	if !strings.Contains(output, "msg=plain") || !strings.Contains(output, "key=value") {
		t.Errorf("unexpected text output: %s", output)
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q", got)
	}
	ctx := context.WithValue(context.Background(), RequestIDKey, 12345)
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(wrong type) = %q", got)
	}

	ctx = WithRequestID(context.Background(), "req-1")
	output := captureLogOutput(t, LevelDebug, FormatJSON, func() {
		InfoContext(ctx, "with id")
	})
	if m := decodeLine(t, output); m["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", m["request_id"])
	}
}

func TestDomainEvents(t *testing.T) {
	tests := []struct {
		name   string
		fn     func()
		msg    string
		fields map[string]any
	}{
		{
			name: "CorpusLoaded",
			fn: func() {
				CorpusLoaded("ia_all.xml", 114, 6236, 40, "abc", 1500*time.Millisecond)
			},
			msg:    "corpus_loaded",
			fields: map[string]any{"chapters": float64(114), "fingerprint": "abc", "duration_ms": float64(1500)},
		},
		{
			name:   "NotesEvent",
			fn:     func() { NotesEvent("set", "2.255", "length", 12) },
			msg:    "notes_event",
			fields: map[string]any{"event": "set", "ref": "2.255", "length": float64(12)},
		},
		{
			name:   "SearchPerformed",
			fn:     func() { SearchPerformed(context.Background(), "1-114", "moon", 3, time.Millisecond) },
			msg:    "search_performed",
			fields: map[string]any{"keyword": "moon", "hits": float64(3)},
		},
		{
			name:   "WebSocketEvent",
			fn:     func() { WebSocketEvent("client_connected", 2) },
			msg:    "websocket_event",
			fields: map[string]any{"client_count": float64(2)},
		},
		{
			name:   "ServerStartup",
			fn:     func() { ServerStartup("api", "http", 8080) },
			msg:    "server_startup",
			fields: map[string]any{"port": float64(8080)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decodeLine(t, captureLogOutput(t, LevelDebug, FormatJSON, tt.fn))
			if m["msg"] != tt.msg {
				t.Errorf("msg = %v, want %s", m["msg"], tt.msg)
			}
			for k, want := range tt.fields {
				if m[k] != want {
					t.Errorf("%s = %v, want %v", k, m[k], want)
				}
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("generated request ID %q is not a UUID: %v", seen, err)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-supplied" {
		t.Errorf("request ID = %q, want the client's", seen)
	}
}

func TestCombinedMiddlewareLogsStatus(t *testing.T) {
	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	output := captureLogOutput(t, LevelInfo, FormatJSON, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search", nil))
	})
	m := decodeLine(t, output)
	if m["msg"] != "http_request" || m["status_code"] != float64(http.StatusTeapot) || m["path"] != "/search" {
		t.Errorf("unexpected access log: %v", m)
	}
	if m["request_id"] == nil {
		t.Error("access log should carry the request ID")
	}
}

func TestResponseWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	if _, err := rw.Write([]byte("body")); err != nil {
		t.Fatal(err)
	}
	if !rw.written || rw.statusCode != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("written=%v status=%d rec=%d", rw.written, rw.statusCode, rec.Code)
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
}
