// ABOUTME: HTTP admin API: server list/connect/disconnect, tool catalog,
// ABOUTME: quest management, and a message endpoint for the CLI front-end.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/toolmux/internal/mcp"
	"github.com/2389/toolmux/internal/pool"
)

// ServerResponse is the JSON view of one registered provider.
type ServerResponse struct {
	Alias     string   `json:"alias"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Connected bool     `json:"connected"`
	Default   bool     `json:"default"`
}

// RegisterServerRequest is the JSON request body for POST /api/servers.
type RegisterServerRequest struct {
	Alias   string            `json:"alias"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	WorkDir string            `json:"workdir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Connect bool              `json:"connect,omitempty"`
}

// ToolResponse is the JSON view of one registry entry.
type ToolResponse struct {
	Name        string `json:"name"`
	Alias       string `json:"alias"`
	Description string `json:"description,omitempty"`
}

// SendMessageRequest is the JSON request body for POST /api/message.
type SendMessageRequest struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Text      string `json:"text"`
}

// SendMessageResponse is the JSON response for POST /api/message.
type SendMessageResponse struct {
	Reply string `json:"reply"`
}

// CreateQuestRequest is the JSON request body for POST /api/quests.
type CreateQuestRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/ready", g.handleReady)
	mux.HandleFunc("/api/servers", g.handleServers)
	mux.HandleFunc("/api/servers/", g.handleServerByAlias)
	mux.HandleFunc("/api/tools", g.handleListTools)
	mux.HandleFunc("/api/message", g.handleSendMessage)
	mux.HandleFunc("/api/quests", g.handleQuests)
	mux.HandleFunc("/api/quests/", g.handleCompleteQuest)
	return mux
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}

func (g *Gateway) handleServers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListServers(w, r)
	case http.MethodPost:
		g.handleRegisterServer(w, r)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers := g.pool.ListServers()
	out := make([]ServerResponse, 0, len(servers))
	for _, s := range servers {
		out = append(out, ServerResponse{
			Alias:     s.Alias,
			Command:   s.Spec.Command,
			Args:      s.Spec.Args,
			Connected: s.Connected,
			Default:   s.Default,
		})
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"servers": out})
}

func (g *Gateway) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var req RegisterServerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Alias == "" || req.Command == "" {
		g.sendJSONError(w, http.StatusBadRequest, "alias and command are required")
		return
	}

	desc := pool.ServerDescriptor{
		Alias: req.Alias,
		Spec: mcp.LaunchSpec{
			Command: req.Command,
			Args:    req.Args,
			WorkDir: req.WorkDir,
			Env:     req.Env,
		},
	}
	if err := g.pool.Register(r.Context(), desc, true); err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Connect {
		if _, err := g.pool.GetOrConnect(r.Context(), req.Alias); err != nil {
			g.sendJSONError(w, http.StatusBadGateway, fmt.Sprintf("registered but connect failed: %v", err))
			return
		}
	}
	g.writeJSON(w, http.StatusCreated, map[string]string{"alias": req.Alias})
}

// handleServerByAlias covers POST /api/servers/{alias}/connect and
// DELETE /api/servers/{alias}.
func (g *Gateway) handleServerByAlias(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/servers/")
	alias, action, _ := strings.Cut(rest, "/")
	if alias == "" {
		g.sendJSONError(w, http.StatusBadRequest, "alias is required")
		return
	}

	switch {
	case r.Method == http.MethodPost && action == "connect":
		g.handleConnectServer(w, r, alias)
	case r.Method == http.MethodDelete && action == "":
		g.handleDisconnectServer(w, r, alias)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleConnectServer(w http.ResponseWriter, r *http.Request, alias string) {
	if _, err := g.pool.GetOrConnect(r.Context(), alias); err != nil {
		if errors.Is(err, pool.ErrAliasUnknown) {
			g.sendJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		g.sendJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"alias": alias, "state": "connected"})
}

func (g *Gateway) handleDisconnectServer(w http.ResponseWriter, r *http.Request, alias string) {
	forget := r.URL.Query().Get("forget") == "true"
	// The default provider must stay reachable; only shutdown tears it
	// down. Rejected here rather than in the pool so Shutdown's own
	// disconnect loop is unaffected.
	if alias == g.pool.DefaultAlias() {
		g.sendJSONError(w, http.StatusConflict, pool.ErrDefaultProtected.Error())
		return
	}
	if err := g.pool.Disconnect(r.Context(), alias, forget); err != nil {
		switch {
		case errors.Is(err, pool.ErrAliasUnknown):
			g.sendJSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, pool.ErrDefaultProtected):
			g.sendJSONError(w, http.StatusConflict, err.Error())
		default:
			g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if forget {
		g.registry.Drop(alias)
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"alias": alias, "state": "disconnected"})
}

func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tools := g.registry.AllTools()
	out := make([]ToolResponse, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolResponse{Name: t.Name, Alias: t.Alias, Description: t.Description})
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req SendMessageRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "api"
	}
	reply := g.Handle(r.Context(), req.UserID, req.ChannelID, req.Text)
	g.writeJSON(w, http.StatusOK, SendMessageResponse{Reply: reply})
}

func (g *Gateway) handleQuests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		quests, err := g.store.ListQuests(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			g.sendJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.writeJSON(w, http.StatusOK, map[string]any{"quests": quests})
	case http.MethodPost:
		var req CreateQuestRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.UserID == "" || req.Title == "" {
			g.sendJSONError(w, http.StatusBadRequest, "user_id and title are required")
			return
		}
		q, err := g.store.CreateQuest(r.Context(), req.UserID, req.Title)
		if err != nil {
			g.sendJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		g.writeJSON(w, http.StatusCreated, q)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCompleteQuest covers POST /api/quests/{id}/complete.
func (g *Gateway) handleCompleteQuest(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/quests/")
	id, action, _ := strings.Cut(rest, "/")
	if r.Method != http.MethodPost || action != "complete" || id == "" {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := g.store.CompleteQuest(r.Context(), id); err != nil {
		g.sendJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"id": id, "state": "completed"})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
