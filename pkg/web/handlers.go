package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicechat/pkg/conversation"
	"github.com/teslashibe/go-voicechat/pkg/hub"
	"github.com/teslashibe/go-voicechat/pkg/session"
	"github.com/teslashibe/go-voicechat/pkg/stt"
)

// sessionKey is the fiber local holding the resolved *session.Session.
const sessionKey = "session"

// TextRequest is the request body for typed messages.
type TextRequest struct {
	Text string `json:"text"`
}

// handleIndex serves the single-page client
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// healthTimeout bounds a deep health check across all providers.
const healthTimeout = 5 * time.Second

// handleHealth reports liveness and the number of open sessions. With
// ?deep=1 it also asks every provider whether it is reachable.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	}
	if !c.QueryBool("deep") {
		return c.JSON(body)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := fiber.StatusOK
	providers := make(map[string]string, len(s.config.HealthChecks))
	for _, check := range s.config.HealthChecks {
		if err := check.Checker.Health(ctx); err != nil {
			providers[check.Name] = err.Error()
			status = fiber.StatusServiceUnavailable
			body["status"] = "degraded"
			s.logger.Warn("provider unhealthy", "provider", check.Name, "error", err)
			continue
		}
		providers[check.Name] = "ok"
	}
	body["providers"] = providers
	return c.Status(status).JSON(body)
}

// handleCreateSession starts a new conversation
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Create()
	if errors.Is(err, session.ErrLimitReached) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": sess.ID})
}

// handleDeleteSession ends a conversation and closes its sockets
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.sessions.Delete(sessionFrom(c).ID); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleAudio submits a recorded clip
func (s *Server) handleAudio(c *fiber.Ctx) error {
	sess := sessionFrom(c)

	data, format, err := readAudio(c, sess.Orchestrator.Config().AudioFormat)
	if err != nil {
		return err
	}

	res, err := sess.Orchestrator.SubmitAudioFormat(c.UserContext(), data, format)
	return s.respond(c, sess, res, err)
}

// handleText submits a typed message
func (s *Server) handleText(c *fiber.Ctx) error {
	sess := sessionFrom(c)

	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res, err := sess.Orchestrator.SubmitText(c.UserContext(), req.Text)
	return s.respond(c, sess, res, err)
}

// handleIdle tells the session the recorder went idle, so the same clip
// may be submitted again
func (s *Server) handleIdle(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	sess.Orchestrator.Idle()
	s.publish(sess, hub.EventStatus, fiber.Map{"state": "idle"})
	return c.SendStatus(fiber.StatusNoContent)
}

// handleTranscript returns every turn without audio bytes
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	sess := sessionFrom(c)

	turns := sess.Orchestrator.Transcript().Turns()
	views := make([]*TurnView, 0, len(turns))
	for i := range turns {
		views = append(views, newTurnView(sess.ID, &turns[i]))
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"turns":      views,
	})
}

// handleTurnAudio streams the synthesized reply of one turn
func (s *Server) handleTurnAudio(c *fiber.Ctx) error {
	sess := sessionFrom(c)

	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid turn index")
	}
	turn, ok := sess.Orchestrator.Transcript().At(index)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "turn not found")
	}
	if !turn.HasAudio() {
		return fiber.NewError(fiber.StatusNotFound, "turn has no audio")
	}

	c.Set(fiber.HeaderContentType, turn.Audio.MIMEType)
	return c.Send(turn.Audio.Data)
}

// handleMetrics returns last-turn and average stage latencies
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	m := sessionFrom(c).Orchestrator.Metrics()

	body := fiber.Map{
		"count":   m.Count(),
		"average": newMetricsView(m.Average()),
	}
	if last, ok := m.Last(); ok {
		body["last"] = newMetricsView(last)
	}
	return c.JSON(body)
}

// handleSessionWS streams session events to a browser
func (s *Server) handleSessionWS(c *websocket.Conn) {
	sess, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		c.Close()
		return
	}

	client := hub.NewClient(sess.Hub, c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}

// lookupSession resolves :id or fails with 404
func (s *Server) lookupSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

func sessionFrom(c *fiber.Ctx) *session.Session {
	return c.Locals(sessionKey).(*session.Session)
}

// respond publishes the outcome of a submission and renders it.
func (s *Server) respond(c *fiber.Ctx, sess *session.Session, res *conversation.Result, err error) error {
	if res != nil && !res.Skipped {
		for _, turn := range []*conversation.Turn{res.User, res.Assistant} {
			if turn != nil {
				s.publish(sess, hub.EventTurn, newTurnView(sess.ID, turn))
			}
		}
		if res.Warning != nil {
			s.publish(sess, hub.EventWarning, fiber.Map{"error": res.Warning.Error()})
		}
	}

	if err != nil {
		view := ErrorView{Error: err.Error()}
		if step, ok := conversation.FailedStep(err); ok {
			view.Step = string(step)
		}
		if res != nil {
			view.User = newTurnView(sess.ID, res.User)
		}
		s.publish(sess, hub.EventError, view)

		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Warn("submission failed",
				"session_id", sess.ID,
				"status", status,
				"error", err,
			)
		}
		return c.Status(status).JSON(view)
	}

	return c.JSON(newResultView(sess.ID, res))
}

func (s *Server) publish(sess *session.Session, eventType hub.EventType, data any) {
	if err := sess.Hub.Publish(eventType, data); err != nil {
		s.logger.Warn("failed to publish event",
			"session_id", sess.ID,
			"type", eventType,
			"error", err,
		)
	}
}

// statusFor maps a submission error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, conversation.ErrTranscriptionFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, conversation.ErrChatFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// readAudio extracts a clip from a multipart "audio" field or the raw body.
// The format comes from the part or request content type, then the
// ?format= query, then fallback.
func readAudio(c *fiber.Ctx, fallback stt.Format) ([]byte, stt.Format, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("audio")
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "missing audio field")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "unreadable audio field")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "unreadable audio field")
		}

		format, ok := stt.ParseFormat(fh.Header.Get(fiber.HeaderContentType))
		if !ok {
			format, ok = stt.ParseFormat(filepath.Ext(fh.Filename))
		}
		if !ok {
			format, err = queryFormat(c, fallback)
		}
		return data, format, err
	}

	data := bytes.Clone(c.Body())
	if format, ok := stt.ParseFormat(c.Get(fiber.HeaderContentType)); ok {
		return data, format, nil
	}
	format, err := queryFormat(c, fallback)
	return data, format, err
}

func queryFormat(c *fiber.Ctx, fallback stt.Format) (stt.Format, error) {
	q := c.Query("format")
	if q == "" {
		return fallback, nil
	}
	format, ok := stt.ParseFormat(q)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "unsupported audio format: "+q)
	}
	return format, nil
}
