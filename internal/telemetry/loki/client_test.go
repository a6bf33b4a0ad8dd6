package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestPushEvent_EmptyBaseURL(t *testing.T) {
	err := PushEvent(context.Background(), "", time.Now(), "line", nil)
	if err == nil {
		t.Fatal("PushEvent with empty base URL should return error")
	}
}

func TestPushEvent_SendsExpectedBody(t *testing.T) {
	var got PushRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := PushEvent(context.Background(), srv.URL, ts, `{"eventType":"session.login"}`,
		map[string]string{"event_type": "session.login", "bad label": "a b/c"})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	if path != "/loki/api/v1/push" {
		t.Errorf("path = %q", path)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	stream := got.Streams[0]
	if stream.Stream["job"] != "session-registry" {
		t.Errorf("job label = %q", stream.Stream["job"])
	}
	if stream.Stream["event_type"] != "session.login" {
		t.Errorf("event_type label = %q", stream.Stream["event_type"])
	}
	// Invalid characters are sanitized out of label values.
	if stream.Stream["bad label"] != "a_b_c" {
		t.Errorf("sanitized label = %q, want %q", stream.Stream["bad label"], "a_b_c")
	}
	if len(stream.Values) != 1 || len(stream.Values[0]) != 2 {
		t.Fatalf("values = %+v", stream.Values)
	}
	if stream.Values[0][1] != `{"eventType":"session.login"}` {
		t.Errorf("line = %q", stream.Values[0][1])
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil)
	if err == nil {
		t.Error("PushEvent should fail on non-2xx response")
	}
}

func TestPushEventJSON_ExtractsLabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw := []byte(`{"sessionId":"s1","eventType":"session.expired","source":"reaper","createdAt":"2025-06-01T12:00:00Z"}`)
	if err := PushEventJSON(context.Background(), srv.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	stream := got.Streams[0]
	if stream.Stream["session_id"] != "s1" || stream.Stream["event_type"] != "session.expired" || stream.Stream["source"] != "reaper" {
		t.Errorf("labels = %+v", stream.Stream)
	}
	wantNS := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if stream.Values[0][0] != strconv.FormatInt(wantNS, 10) {
		t.Errorf("timestamp = %q, want %d", stream.Values[0][0], wantNS)
	}
}

func TestPushEventJSON_UnparseableFallsBack(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := PushEventJSON(context.Background(), srv.URL, []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if got.Streams[0].Values[0][1] != "not json" {
		t.Errorf("line = %q", got.Streams[0].Values[0][1])
	}
}
