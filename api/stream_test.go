package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func readEvent(t *testing.T, r *bufio.Reader) stateResponse {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		var st stateResponse
		if err := sonic.UnmarshalString(data, &st); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		return st
	}
}

func TestStreamPushesSnapshots(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)
	srv := httptest.NewServer(ts.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+id+"/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	if first.Version != 0 || len(first.Tasks) != 0 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	s, err := ts.sessions.Get(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	s.SetInput("streamed")
	s.AddTask()

	for {
		st := readEvent(t, r)
		if len(st.Tasks) == 1 {
			if st.Tasks[0].Content != "streamed" || st.PendingInput != "" {
				t.Fatalf("unexpected snapshot %+v", st)
			}
			break
		}
	}
}
