package v1

import (
	"context"
	"net/http"
	"testing"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

func TestRegisterAgentValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := call(t, h.RegisterAgent, http.MethodPost, "/api/v1/agents", map[string]string{"name": "demo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = call(t, h.RegisterAgent, http.MethodPost, "/api/v1/agents", domain.RegisterAgentRequest{Name: "demo", Endpoint: "not a url"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad endpoint, got %d", rec.Code)
	}
}

func TestRegisterAgentSuccess(t *testing.T) {
	h, db := newTestHandler(t)

	rec := call(t, h.RegisterAgent, http.MethodPost, "/api/v1/agents", domain.RegisterAgentRequest{
		Name:     "demo",
		Endpoint: "http://agent:8080",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	agent, err := db.GetAgent(context.Background(), "demo")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if agent == nil || agent.Endpoint != "http://agent:8080" {
		t.Fatalf("unexpected agent: %+v", agent)
	}

	rec = call(t, h.GetAgent, http.MethodGet, "/api/v1/agents/demo", nil, "agent_name", "demo")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = call(t, h.ListAgents, http.MethodGet, "/api/v1/agents", nil)
	var resp struct {
		Agents []domain.Agent `json:"agents"`
	}
	decode(t, rec, &resp)
	if len(resp.Agents) != 1 || resp.Agents[0].Name != "demo" {
		t.Fatalf("unexpected agents: %+v", resp.Agents)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := call(t, h.GetAgent, http.MethodGet, "/api/v1/agents/ghost", nil, "agent_name", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInvokeAgent(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := call(t, h.InvokeAgent, http.MethodPost, "/", domain.InvokeAgentRequest{Tool: "summarize"}, "agent_name", "ghost")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unknown agent, got %d", rec.Code)
	}

	srv := textAgent(t, "summary ready")
	call(t, h.RegisterAgent, http.MethodPost, "/api/v1/agents", domain.RegisterAgentRequest{Name: "writer", Endpoint: srv.URL})

	rec = call(t, h.InvokeAgent, http.MethodPost, "/", domain.InvokeAgentRequest{
		Tool:       "summarize",
		Parameters: map[string]interface{}{"topic": "operators"},
	}, "agent_name", "writer")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var inv domain.Invocation
	decode(t, rec, &inv)
	if inv.Result != "summary ready" || inv.Attempts != 1 {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
}

func TestRemoveAgent(t *testing.T) {
	h, db := newTestHandler(t)

	rec := call(t, h.RemoveAgent, http.MethodDelete, "/api/v1/agents/ghost", nil, "agent_name", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	srv := textAgent(t, "done")
	call(t, h.RegisterAgent, http.MethodPost, "/api/v1/agents", domain.RegisterAgentRequest{Name: "writer", Endpoint: srv.URL})

	rec = call(t, h.RemoveAgent, http.MethodDelete, "/api/v1/agents/writer", nil, "agent_name", "writer")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if agent, err := db.GetAgent(context.Background(), "writer"); err != nil || agent != nil {
		t.Fatalf("agent still stored: %+v, %v", agent, err)
	}

	rec = call(t, h.InvokeAgent, http.MethodPost, "/", domain.InvokeAgentRequest{Tool: "summarize"}, "agent_name", "writer")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after removal, got %d", rec.Code)
	}
}
