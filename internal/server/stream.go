package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	maxStreamFrameBytes = 64 << 10
	streamWriteTimeout  = 10 * time.Second
)

// handleStream runs the candidate side of an interview over one WebSocket.
// Each {"text": ...} frame gets a CandidateMessageResponse frame or an error frame;
// the server closes normally once the session completes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.service.GetStatus(r.Context(), sessionID); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxStreamFrameBytes)

	log := s.logger.With(zap.String(logger.FieldSessionID, sessionID))
	log.Debug("stream opened")

	for {
		var req types.CandidateMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("stream read failed", zap.Error(err))
			}
			return
		}

		res, err := s.service.CandidateMessage(r.Context(), sessionID, req.Text)
		if err != nil {
			if !s.writeFrame(conn, newErrorBody(err)) {
				return
			}
			if interview.Kind(err) == interview.KindSessionNotActive {
				s.closeStream(conn, "session is not active")
				return
			}
			continue
		}

		if !s.writeFrame(conn, messageResponse(res)) {
			return
		}
		if res.Status.Status == types.StatusCompleted {
			log.Debug("stream closed after completion")
			s.closeStream(conn, "interview completed")
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Debug("stream write failed", zap.Error(err))
		return false
	}
	return true
}

func (s *Server) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
}
