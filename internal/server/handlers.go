package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// validatable is implemented by request bodies in the types package
type validatable interface {
	Validate() error
}

// decodeJSON reads a bounded JSON body into dst and validates it
func decodeJSON(w http.ResponseWriter, r *http.Request, dst validatable) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &requestError{Message: "body must be valid JSON: " + err.Error()}
	}
	return dst.Validate()
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	roleID := r.PathValue("role_id")
	var req types.ImportQuestionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	count, err := s.service.ImportQuestions(r.Context(), roleID, req.Questions)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.ImportQuestionsResponse{RoleID: roleID, Count: count})
}

func (s *Server) handleGetQuestions(w http.ResponseWriter, r *http.Request) {
	roleID := r.PathValue("role_id")
	qs, err := s.service.Bank().GetQuestions(r.Context(), roleID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"role_id": roleID, "questions": qs})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req types.StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	res, err := s.service.StartSession(r.Context(), interview.StartRequest{
		RoleID: req.RoleID,
		Pinned: req.Pinned(),
		Rubric: req.Rubric,
	})
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp := types.StartSessionResponse{SessionID: res.SessionID, FirstQuestion: res.FirstQuestion}
	if s.jwtService != nil {
		token, err := s.jwtService.GenerateToken(res.SessionID)
		if err != nil {
			s.errorResponse(w, r, err)
			return
		}
		resp.Token = token
	}
	s.jsonResponse(w, http.StatusCreated, resp)
}

func (s *Server) handleCandidateMessage(w http.ResponseWriter, r *http.Request) {
	var req types.CandidateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	res, err := s.service.CandidateMessage(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, messageResponse(res))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	payload, err := s.service.Score(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.logger.Debug("score payload served", zap.String("session_id", sessionID))
	s.jsonResponse(w, http.StatusOK, types.ScoreResponse{SessionID: sessionID, PackagedPayload: payload})
}

func messageResponse(res *interview.MessageResult) types.CandidateMessageResponse {
	return types.CandidateMessageResponse{
		AssistantText: res.AssistantText,
		NextQuestion:  res.NextQuestion,
		SessionStatus: res.Status,
	}
}
