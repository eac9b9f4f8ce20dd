package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

var fixedNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

const messagesPrefix = "/gmail/v1/users/me/messages"

// fakeGmail serves canned list and metadata responses keyed by message id.
type fakeGmail struct {
	list     string
	messages map[string]string
	statuses map[string]int

	auth     atomic.Value
	modified []string
	modBody  map[string]any
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth.Store(r.Header.Get("Authorization"))

	switch {
	case r.URL.Path == messagesPrefix:
		q := r.URL.Query()
		if q.Get("q") != "is:starred OR is:important" || q.Get("maxResults") != "50" {
			http.Error(w, `{"error":{"code":400,"message":"bad query"}}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(f.list))

	case strings.HasSuffix(r.URL.Path, "/modify"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, messagesPrefix+"/"), "/modify")
		f.modified = append(f.modified, id)
		_ = json.NewDecoder(r.Body).Decode(&f.modBody)
		_, _ = w.Write([]byte(`{"id":"` + id + `","labelIds":["STARRED"]}`))

	default:
		id := strings.TrimPrefix(r.URL.Path, messagesPrefix+"/")
		if r.URL.Query().Get("format") != "metadata" {
			http.Error(w, `{"error":{"code":400,"message":"format"}}`, http.StatusBadRequest)
			return
		}
		if status, ok := f.statuses[id]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `,"message":"` + http.StatusText(status) + `"}}`))
			return
		}
		body, ok := f.messages[id]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

func newTestAdapter(t *testing.T, fake *fakeGmail) *Adapter {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewAdapter(Options{
		BaseURL:    server.URL,
		Tokens:     source.StaticToken("gmail-token"),
		HTTPClient: server.Client(),
		Now:        func() time.Time { return fixedNow },
	})
}

func TestFetchActionableNormalizesMetadata(t *testing.T) {
	fake := &fakeGmail{
		list: `{"messages":[{"id":"m1"},{"id":"m2"},{"id":"m3"},{"id":"gone"}],"resultSizeEstimate":4}`,
		messages: map[string]string{
			"m1": `{
				"id":"m1","threadId":"t1",
				"labelIds":["INBOX","IMPORTANT","UNREAD"],
				"snippet":"Lunch on   Friday?",
				"internalDate":"1767261600000",
				"payload":{"headers":[
					{"name":"From","value":"Jane Doe <jane@x.com>"},
					{"name":"Subject","value":"Lunch"},
					{"name":"Date","value":"Thu, 1 Jan 2026 10:00:00 +0000"}
				]}
			}`,
			"m2": `{
				"id":"m2",
				"labelIds":["STARRED"],
				"payload":{"headers":[
					{"name":"From","value":"jane@x.com"},
					{"name":"Date","value":"Fri, 02 Jan 2026 08:15:00 +0000"}
				]}
			}`,
			"m3": `{"id":"m3","payload":{"headers":[]}}`,
		},
	}
	adapter := newTestAdapter(t, fake)

	result, err := adapter.FetchActionable(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := fake.auth.Load(); got != "Bearer gmail-token" {
		t.Fatalf("expected bearer token, got %v", got)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected vanished message to be skipped, got %d", result.Skipped)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Items))
	}

	m1 := result.Items[0]
	if m1.ActorName != "Jane Doe" || m1.ActorIdentifier != "jane@x.com" {
		t.Fatalf("unexpected sender %q %q", m1.ActorName, m1.ActorIdentifier)
	}
	if m1.Title != "Lunch" || m1.Summary != "Lunch on Friday?" {
		t.Fatalf("unexpected title/summary %q %q", m1.Title, m1.Summary)
	}
	if !m1.Flags.Important || m1.Flags.Flagged || m1.Flags.Read {
		t.Fatalf("unexpected flags %+v", m1.Flags)
	}
	if !m1.Timestamp.Equal(time.UnixMilli(1767261600000)) {
		t.Fatalf("expected internalDate timestamp, got %v", m1.Timestamp)
	}

	m2 := result.Items[1]
	if m2.ActorName != "jane@x.com" || m2.ActorIdentifier != "jane@x.com" {
		t.Fatalf("unexpected bare-address sender %q %q", m2.ActorName, m2.ActorIdentifier)
	}
	if m2.Title != model.NoSubject {
		t.Fatalf("expected placeholder subject, got %q", m2.Title)
	}
	if !m2.Flags.Flagged || !m2.Flags.Read {
		t.Fatalf("unexpected flags %+v", m2.Flags)
	}
	if !m2.Timestamp.Equal(time.Date(2026, 1, 2, 8, 15, 0, 0, time.UTC)) {
		t.Fatalf("expected Date header fallback, got %v", m2.Timestamp)
	}

	m3 := result.Items[2]
	if m3.ActorName != model.UnknownActor || m3.ActorIdentifier != model.UnknownIdentifier {
		t.Fatalf("expected unknown actor, got %q %q", m3.ActorName, m3.ActorIdentifier)
	}
	if m3.Flags.Read {
		t.Fatalf("missing labels should default to unread")
	}
	if !m3.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected fetch-time fallback, got %v", m3.Timestamp)
	}
}

func TestFetchActionableSkipsMalformedItem(t *testing.T) {
	fake := &fakeGmail{
		list: `{"messages":[{"id":"ok"},{"id":"bad"}]}`,
		messages: map[string]string{
			"ok":  `{"id":"ok","labelIds":["STARRED"]}`,
			"bad": `{"id":"bad","internalDate":{}}`,
		},
	}
	adapter := newTestAdapter(t, fake)

	result, err := adapter.FetchActionable(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != "ok" || result.Skipped != 1 {
		t.Fatalf("unexpected result items=%d skipped=%d", len(result.Items), result.Skipped)
	}
}

func TestFetchActionableAbortsOnAuthFailureMidBatch(t *testing.T) {
	fake := &fakeGmail{
		list:     `{"messages":[{"id":"a"},{"id":"b"}]}`,
		messages: map[string]string{"a": `{"id":"a"}`},
		statuses: map[string]int{"b": http.StatusUnauthorized},
	}
	adapter := newTestAdapter(t, fake)

	result, err := adapter.FetchActionable(context.Background())
	if !source.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no partial result, got %+v", result)
	}
}

func TestFetchActionableListMalformed(t *testing.T) {
	fake := &fakeGmail{list: `{"messages":"oops"`}
	adapter := newTestAdapter(t, fake)

	_, err := adapter.FetchActionable(context.Background())
	if source.KindOf(err) != source.KindMalformedResponse {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestArchiveRemovesInboxLabel(t *testing.T) {
	fake := &fakeGmail{}
	adapter := newTestAdapter(t, fake)

	for i := 0; i < 2; i++ {
		if err := adapter.Archive(context.Background(), "m1"); err != nil {
			t.Fatalf("archive #%d failed: %v", i+1, err)
		}
	}
	if len(fake.modified) != 2 || fake.modified[0] != "m1" {
		t.Fatalf("unexpected modify calls %v", fake.modified)
	}
	labels, _ := fake.modBody["removeLabelIds"].([]any)
	if len(labels) != 1 || labels[0] != "INBOX" {
		t.Fatalf("unexpected modify body %+v", fake.modBody)
	}
}

func TestFetchWithoutTokenIsUnauthorized(t *testing.T) {
	adapter := NewAdapter(Options{BaseURL: "http://127.0.0.1:1"})

	_, err := adapter.FetchActionable(context.Background())
	if !source.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
