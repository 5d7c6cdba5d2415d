package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/export"
	"github.com/seo-optimizer/segment-architect/middleware"
	"github.com/seo-optimizer/segment-architect/segment"
	"github.com/seo-optimizer/segment-architect/session"
	"github.com/seo-optimizer/segment-architect/stats"
)

type analyzeRequest struct {
	Domain string `json:"domain" binding:"required"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// lookup resolves the :id parameter or answers 404.
func (h *handler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func (h *handler) createSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": s.ID()})
}

func (h *handler) getSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *handler) deleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		errorJSON(c, http.StatusNotFound, "Session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) analyze(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var request analyzeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid domain provided")
		return
	}

	err := s.Analyze(c.Request.Context(), request.Domain)
	switch {
	case errors.Is(err, session.ErrEmptyDomain):
		errorJSON(c, http.StatusBadRequest, "Invalid domain provided")
		return
	case errors.Is(err, session.ErrInFlight):
		errorJSON(c, http.StatusConflict, "An analysis is already in progress")
		return
	case errors.Is(err, session.ErrClosed):
		errorJSON(c, http.StatusNotFound, "Session not found")
		return
	}

	c.Set(middleware.KeyAnalyzedDomain, strings.TrimSpace(request.Domain))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadGateway, s.Snapshot())
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *handler) exportSpreadsheet(c *gin.Context) {
	h.export(c, "xlsx", stats.SpreadsheetExported, export.SpreadsheetContentType, export.SpreadsheetFilename,
		func(w io.Writer, _ string, segs []segment.Segment) error {
			return export.WriteSpreadsheet(w, segs)
		})
}

func (h *handler) exportSlides(c *gin.Context) {
	h.export(c, "pptx", stats.SlidesExported, export.SlidesContentType, export.SlidesFilename, export.WriteSlides)
}

// export renders a snapshot of the session's result as a download.
func (h *handler) export(
	c *gin.Context,
	format string,
	event stats.Event,
	contentType string,
	filename func(domain string) string,
	write func(w io.Writer, domain string, segs []segment.Segment) error,
) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	snap := s.Snapshot()
	if snap.Status == session.StatusLoading {
		errorJSON(c, http.StatusConflict, "An analysis is in progress")
		return
	}
	if !snap.HasResult() {
		errorJSON(c, http.StatusConflict, "No analysis result to export")
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, snap.Domain, snap.Segments); err != nil {
		h.logger.Error("Export failed",
			zap.String("session", snap.ID),
			zap.String("format", format),
			zap.Error(err))
		c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to build the document")
		return
	}

	if h.usage != nil {
		h.usage.Record(event)
	}
	c.Set(middleware.KeyExportFormat, format)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": filename(snap.Domain),
	}))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
