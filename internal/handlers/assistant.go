package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/lorewiki-api/internal/middleware"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

type AssistantHandler struct {
	assistant AssistantServiceInterface
	logger    *zap.Logger
}

func NewAssistantHandler(assistant AssistantServiceInterface, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

// streamWriter commits a text/plain 200 on the first chunk so that failures
// before any output can still be answered with a JSON error.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	return s.w.Write(p)
}

// Generate relays the prompt and forwards each generated chunk as it arrives.
func (h *AssistantHandler) Generate(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.GenerateRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	out := &streamWriter{w: c.Response}
	rc := http.NewResponseController(c.Response)
	flush := func() error {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	chunks, err := h.assistant.Generate(c.Request.Context(), req.Prompt, out, flush)
	if err == nil {
		if !out.started {
			c.Response.WriteHeader(http.StatusOK)
		}
		return
	}

	if out.started {
		h.logger.Warn("assistant stream interrupted",
			zap.Stringer("user_id", userID),
			zap.Int("chunks", chunks),
			zap.Error(err),
		)
		return
	}
	if services.KindOf(err) == services.KindInternal {
		h.logger.Error("assistant request failed", zap.Stringer("user_id", userID), zap.Error(err))
	}
	respondError(c, err)
}
