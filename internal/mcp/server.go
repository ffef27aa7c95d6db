// Package mcp exposes the bridge to MCP clients: JSON-RPC over HTTP
// with the game state behind resources and the action surface behind
// tools. Everything here is pull-only; the bridge never pushes.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"openfront.gg/internal/actions"
	"openfront.gg/internal/gamelink"
	"openfront.gg/internal/protocol"
	"openfront.gg/internal/query"
	"openfront.gg/internal/state"
)

const mcpProtocolVersion = "2024-11-05"

// Query is the read side served to clients.
type Query interface {
	Session() (query.SessionDoc, bool)
	State() (query.StateDoc, bool)
	MapSummary() (query.MapSummaryDoc, bool)
	TileAt(x, y int) (query.TileDoc, bool)
	ActionsAt(x, y int) (actions.Result, bool)
}

// GameLink is the write side: intent submission and link status.
type GameLink interface {
	SendIntent(ctx context.Context, kind string, payload json.RawMessage) error
	Status() gamelink.Status
}

type Config struct {
	Query       Query
	Link        GameLink
	Diagnostics func() state.Diagnostics // optional
}

type Server struct {
	query Query
	link  GameLink
	diag  func() state.Diagnostics
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Query == nil {
		return nil, fmt.Errorf("nil query")
	}
	if cfg.Link == nil {
		return nil, fmt.Errorf("nil game link")
	}
	return &Server{
		query: cfg.Query,
		link:  cfg.Link,
		diag:  cfg.Diagnostics,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	req, err := parseRPCRequest(body)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad jsonrpc request"))
		return
	}

	resp := s.dispatch(r.Context(), req)
	rw.Header().Set("content-type", "application/json")
	enc := json.NewEncoder(rw)
	_ = enc.Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"capabilities": map[string]any{
				"tools":     map[string]any{"listChanged": false},
				"resources": map[string]any{"listChanged": false},
			},
		})

	case "tools/list", "list_tools":
		return rpcOK(req.ID, map[string]any{"tools": s.toolsList()})

	case "tools/call", "call_tool":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		if p.Name == "" {
			return rpcErr(req.ID, codeInvalidParams, "missing tool name", nil)
		}
		if !isKnownTool(p.Name) {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		out, err := s.callTool(ctx, p.Name, p.Arguments)
		if err != nil {
			return rpcErr(req.ID, codeToolFailed, err.Error(), nil)
		}
		return rpcOK(req.ID, toolContent(out))

	case "resources/list", "list_resources":
		return rpcOK(req.ID, map[string]any{"resources": resourcesList()})

	case "resources/read", "read_resource":
		var p struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		out, ok := s.readResource(p.URI)
		if !ok {
			return rpcErr(req.ID, codeMethodNotFound, "resource not found", map[string]any{"uri": p.URI})
		}
		return rpcOK(req.ID, map[string]any{
			"contents": []map[string]any{{
				"uri":      p.URI,
				"mimeType": "application/json",
				"text":     mustJSON(out),
			}},
		})

	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

// unavailable is the sentinel answer for queries that arrive before the
// relevant upstream message. It is a result, never an RPC error.
type unavailable struct {
	Available bool   `json:"available"`
	Code      string `json:"code"`
}

func notReady() unavailable {
	return unavailable{Available: false, Code: protocol.ErrNotReady}
}

func (s *Server) readResource(uri string) (any, bool) {
	switch uri {
	case "game://session":
		if doc, ok := s.query.Session(); ok {
			return doc, true
		}
		return notReady(), true
	case "game://state":
		if doc, ok := s.query.State(); ok {
			return doc, true
		}
		return notReady(), true
	case "game://map/summary":
		if doc, ok := s.query.MapSummary(); ok {
			return doc, true
		}
		return notReady(), true
	default:
		return nil, false
	}
}

func resourcesList() []map[string]any {
	return []map[string]any{
		{
			"uri":         "game://session",
			"name":        "Session info",
			"description": "Lobby metadata and the local client identity.",
			"mimeType":    "application/json",
		},
		{
			"uri":         "game://state",
			"name":        "Game state",
			"description": "Reconciled snapshot: tick, players, units, local player, recent events.",
			"mimeType":    "application/json",
		},
		{
			"uri":         "game://map/summary",
			"name":        "Map summary",
			"description": "Map dimensions plus per-owner tile counts and bounding boxes.",
			"mimeType":    "application/json",
		},
	}
}

func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case "game.get_status":
		st := map[string]any{
			"link": s.link.Status(),
		}
		if doc, ok := s.query.Session(); ok {
			st["session"] = doc
		}
		if s.diag != nil {
			st["diagnostics"] = s.diag()
		}
		return st, nil

	case "game.tile_at":
		var p struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if doc, ok := s.query.TileAt(p.X, p.Y); ok {
			return doc, nil
		}
		return notReady(), nil

	case "game.get_player_actions":
		var p struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if res, ok := s.query.ActionsAt(p.X, p.Y); ok {
			return res, nil
		}
		return notReady(), nil

	case "game.send_intent":
		var p struct {
			Kind    string          `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if !protocol.IsIntentKind(p.Kind) {
			return nil, fmt.Errorf("unknown intent kind %q", p.Kind)
		}
		if err := s.link.SendIntent(ctx, p.Kind, p.Payload); err != nil {
			return nil, err
		}
		return map[string]any{"sent": true, "kind": p.Kind}, nil

	case "game.set_attack_ratio":
		var p struct {
			Ratio float64 `json:"ratio"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		payload, _ := json.Marshal(map[string]float64{"ratio": p.Ratio})
		if err := s.link.SendIntent(ctx, protocol.IntentSetAttackRatio, payload); err != nil {
			return nil, err
		}
		return map[string]any{"sent": true, "ratio": p.Ratio}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) toolsList() []map[string]any {
	xySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer", "minimum": 0},
			"y": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"x", "y"},
	}
	return []map[string]any{
		{
			"name":        "game.get_status",
			"description": "Get bridge status: game link health, session info, reconciliation diagnostics.",
			"inputSchema": map[string]any{"type": "object", "properties": map[string]any{}, "additionalProperties": false},
		},
		{
			"name":        "game.tile_at",
			"description": "Inspect one tile: terrain, owner, fallout, border.",
			"inputSchema": xySchema,
		},
		{
			"name":        "game.get_player_actions",
			"description": "Get available actions for a specific tile (x, y): buildable units with costs, attack eligibility, diplomacy flags.",
			"inputSchema": xySchema,
		},
		{
			"name":        "game.send_intent",
			"description": "Send an action intent to the game (attack, build_unit, alliance_request, donate, embargo, ...).",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":    map[string]any{"type": "string"},
					"payload": map[string]any{"type": "object"},
				},
				"required": []string{"kind"},
			},
		},
		{
			"name":        "game.set_attack_ratio",
			"description": "Set the ratio of troops committed to attacks (0.0 to 1.0).",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ratio": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required": []string{"ratio"},
			},
		},
	}
}

func isKnownTool(name string) bool {
	switch name {
	case "game.get_status",
		"game.tile_at",
		"game.get_player_actions",
		"game.send_intent",
		"game.set_attack_ratio":
		return true
	default:
		return false
	}
}

// toolContent wraps a tool result the way MCP clients expect: a single
// text content item carrying JSON.
func toolContent(v any) map[string]any {
	return map[string]any{
		"content": []map[string]any{{
			"type": "text",
			"text": mustJSON(v),
		}},
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}
