package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchSessionInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"appId":"blockduel","sessionId":"s1","wsUrl":"ws://example/ws","lobbyUrl":"https://lobby"}`))
	}))
	defer ts.Close()

	info, err := FetchSessionInfo(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if info.AppID != "blockduel" || info.SessionID != "s1" || info.WSURL != "ws://example/ws" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestFetchSessionInfoFallsBackToSameHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	info, err := FetchSessionInfo(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "ws" + ts.URL[len("http"):] + "/ws"
	if info.WSURL != want {
		t.Fatalf("ws url = %q, want %q", info.WSURL, want)
	}
}
