package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SessionInfo is the bootstrap document a session server serves at
// /session.json.
type SessionInfo struct {
	AppID     string `json:"appId"`
	SessionID string `json:"sessionId"`
	WSURL     string `json:"wsUrl"`
	LobbyURL  string `json:"lobbyUrl"`
}

// FetchSessionInfo retrieves the bootstrap document from a session
// server's base URL. When the document is absent the socket URL falls
// back to a same-host /ws endpoint.
func FetchSessionInfo(ctx context.Context, baseURL string) (SessionInfo, error) {
	base := strings.TrimRight(baseURL, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/session.json", nil)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("fetch session.json: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return SessionInfo{WSURL: deriveWSURL(base)}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return SessionInfo{}, fmt.Errorf("fetch session.json: status %d", resp.StatusCode)
	}

	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SessionInfo{}, fmt.Errorf("decode session.json: %w", err)
	}
	if info.WSURL == "" {
		info.WSURL = deriveWSURL(base)
	}
	return info, nil
}

func deriveWSURL(base string) string {
	ws := base
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws"
}
