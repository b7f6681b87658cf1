package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
)

// pathID parses the {id} path value.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "invalid UUID"}
	}
	return id, nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if agents == nil {
		agents = []types.Agent{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	agent, err := s.store.GetAgent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, agent)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	limit := DefaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, r, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, MaxRunLimit)
	}

	if _, err := s.store.GetAgent(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleAgentStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetAgent(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.store.AgentStats(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// handleTriggerRun queues a run of the agent now. The schedule is left untouched.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	agent, err := s.store.GetAgent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !agent.Enabled {
		s.fail(w, r, &ErrAgentDisabled{Name: agent.Name})
		return
	}
	if err := s.dispatch.Submit(agent.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("manual run queued", "agent", agent.ID, "name", agent.Name)
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "queued", "agent_id": agent.ID.String()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleRunCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := store.CandidateQuery{RunID: id, Order: store.OrderFinalScore}
	if v := r.URL.Query().Get("status"); v != "" {
		status := types.CandidateStatus(v)
		switch status {
		case types.CandidatePending, types.CandidateVetted, types.CandidateLLMScored,
			types.CandidateSubmitted, types.CandidateRejected:
			q.Status = status
		default:
			s.fail(w, r, &ErrValidation{Field: "status", Message: "unknown candidate status"})
			return
		}
	}

	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	candidates, err := s.store.ListCandidates(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"candidates": candidates, "count": len(candidates)})
}
