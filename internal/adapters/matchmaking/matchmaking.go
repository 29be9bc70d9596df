// Package matchmaking adapts the hub backend into typed domain events and
// commands. It forwards raw notifications as-is; no membership mutation or
// role decisions happen here.
package matchmaking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/core"
	"github.com/dkeye/playroom/internal/domain"
)

const (
	identityHeader = "X-Playroom-Identity"
	nameHeader     = "X-Playroom-Name"

	requestTimeout = 10 * time.Second
)

// Config describes the backend endpoint and the local participant.
type Config struct {
	BaseURL     string
	Identity    domain.Identity
	DisplayName string
}

// Adapter is a core.Matchmaker backed by the hub's REST API plus one
// websocket notification stream per participant.
type Adapter struct {
	cfg   Config
	httpc *http.Client

	mu     sync.Mutex
	sink   core.Sink
	stream *eventStream
}

func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:   cfg,
		httpc: &http.Client{Timeout: requestTimeout},
	}
}

type createRequest struct {
	MaxMembers int    `json:"max_members"`
	HostAddr   string `json:"host_addr"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Adapter) CreateSession(ctx context.Context, maxMembers int, hostAddr string) (domain.Session, error) {
	body := createRequest{MaxMembers: maxMembers, HostAddr: hostAddr}
	var s domain.Session
	if err := a.do(ctx, http.MethodPost, "/api/lobbies", body, &s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (a *Adapter) JoinSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	var s domain.Session
	if err := a.do(ctx, http.MethodPost, "/api/lobbies/"+string(id)+"/join", nil, &s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (a *Adapter) LeaveSession(id domain.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	err := a.do(ctx, http.MethodPost, "/api/lobbies/"+string(id)+"/leave", nil, nil)
	if err != nil && err != core.ErrNotFound {
		// Fire-and-forget; already-left is a no-op.
		log.Warn().Err(err).Str("module", "matchmaking").Str("session", string(id)).Msg("leave session")
	}
}

func (a *Adapter) SetMetadata(id domain.SessionID, key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	body := map[string]string{"key": key, "value": value}
	if err := a.do(ctx, http.MethodPut, "/api/lobbies/"+string(id)+"/metadata", body, nil); err != nil {
		log.Warn().Err(err).Str("module", "matchmaking").Str("session", string(id)).Str("key", key).Msg("set metadata")
	}
}

func (a *Adapter) SetJoinable(id domain.SessionID, joinable bool) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	body := map[string]bool{"joinable": joinable}
	if err := a.do(ctx, http.MethodPut, "/api/lobbies/"+string(id)+"/joinable", body, nil); err != nil {
		log.Warn().Err(err).Str("module", "matchmaking").Str("session", string(id)).Msg("set joinable")
	}
}

// Invite asks the backend to deliver an invite to another participant.
// Best-effort, like metadata updates.
func (a *Adapter) Invite(id domain.SessionID, to domain.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	body := map[string]string{"to": string(to)}
	if err := a.do(ctx, http.MethodPost, "/api/lobbies/"+string(id)+"/invite", body, nil); err != nil {
		log.Warn().Err(err).Str("module", "matchmaking").Str("session", string(id)).Msg("invite")
	}
}

// LobbyInfo is the hub's listing view of a joinable session.
type LobbyInfo struct {
	ID          domain.SessionID `json:"id"`
	Name        string           `json:"name"`
	MemberCount int              `json:"member_count"`
	MaxMembers  int              `json:"max_members"`
	Joinable    bool             `json:"joinable"`
}

// List enumerates joinable sessions for discovery UIs.
func (a *Adapter) List(ctx context.Context) ([]LobbyInfo, error) {
	var out []LobbyInfo
	if err := a.do(ctx, http.MethodGet, "/api/lobbies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(identityHeader, string(a.cfg.Identity))
	req.Header.Set(nameHeader, a.cfg.DisplayName)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return core.ErrBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return mapError(resp.StatusCode, er.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapError converts hub status/code pairs into the boundary taxonomy.
// Raw backend errors never reach the coordinator.
func mapError(status int, code string) error {
	switch code {
	case "not_found":
		return core.ErrNotFound
	case "full":
		return core.ErrFull
	case "banned":
		return core.ErrBanned
	case "quota_exceeded":
		return core.ErrQuotaExceeded
	}
	switch status {
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrFull
	case http.StatusForbidden:
		return core.ErrBanned
	case http.StatusTooManyRequests:
		return core.ErrQuotaExceeded
	default:
		return core.ErrBackendUnavailable
	}
}

// wsURL derives the notification stream endpoint from the REST base URL.
func (a *Adapter) wsURL() string {
	base := a.cfg.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/events"
}
