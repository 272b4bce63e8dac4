package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/transport/ws"
)

func TestClientListPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/approvals/pending", r.URL.Path)
		assert.Equal(t, "content_review", r.URL.Query().Get("type"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"approvals": []domain.ApprovalRequest{{ApprovalID: "a1", Type: domain.ApprovalTypeContentReview}},
			"count":     1,
		})
	}))
	defer srv.Close()

	approvals, err := NewClient(srv.URL).ListPending(context.Background(), "content_review", "")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "a1", approvals[0].ApprovalID)
}

func TestClientDecideSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/approvals/a1/approve", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"approval already decided"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Decide(context.Background(), "a1", "approve", domain.DecisionInput{Reviewer: "alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approval already decided")
	assert.Contains(t, err.Error(), "409")
}

func TestClientListEvolutionsByWorkshop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workshops/ocp-basics/evolutions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"evolutions": []domain.Evolution{{EvolutionID: "e1", WorkshopName: "ocp-basics"}},
		})
	}))
	defer srv.Close()

	evolutions, err := NewClient(srv.URL).ListEvolutions(context.Background(), "ocp-basics")
	require.NoError(t, err)
	require.Len(t, evolutions, 1)
	assert.Equal(t, "e1", evolutions[0].EvolutionID)
}

func TestFeedURL(t *testing.T) {
	u, err := NewClient("https://coordinator.example.com/").FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://coordinator.example.com/ws", u)

	u, err = NewClient("http://localhost:8080").FeedURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)
}

func TestPrintFeedMessage(t *testing.T) {
	var out bytes.Buffer
	data, err := json.Marshal(ws.EventMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeEvent},
		Event:       domain.Event{Type: domain.EventTypeApprovalApproved, SubjectID: "a1", Actor: "alice", Ts: 1772442000000},
	})
	require.NoError(t, err)

	require.NoError(t, printFeedMessage(&out, data))
	assert.Contains(t, out.String(), "approval_approved")
	assert.Contains(t, out.String(), "a1 by alice")

	errMsg, _ := json.Marshal(ws.ErrorMessage{BaseMessage: ws.BaseMessage{Type: ws.TypeError}, Code: ws.ErrorCodeUnauthorized, Message: "invalid api_key"})
	assert.Error(t, printFeedMessage(&out, errMsg))
}
