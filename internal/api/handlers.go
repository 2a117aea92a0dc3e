package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/logging"
	"github.com/pathlab-mcp-server/internal/service"
	"github.com/pathlab-mcp-server/pkg/refrange"
)

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	Value          string `json:"value"`
	ReferenceRange string `json:"reference_range"`
	Gender         string `json:"gender,omitempty"`
}

// ClassifyResponse is the classifier result plus the parsed range.
type ClassifyResponse struct {
	refrange.Result
	Parsed bool   `json:"parsed"`
	Range  string `json:"range,omitempty"`
}

// UpdateResultsRequest is the body of PUT /api/v1/reports/:id/results.
type UpdateResultsRequest struct {
	Results []domain.ResultRow  `json:"results"`
	Status  domain.ReportStatus `json:"status,omitempty"`
}

// ReportList is a page of reports.
type ReportList struct {
	Reports []*domain.Report `json:"reports"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

func (s *Server) handleHealth(c *gin.Context) {
	checks := make(map[string]string, len(s.deps.Health))
	status := http.StatusOK
	for name, check := range s.deps.Health {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   s.deps.Version,
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid classify request", err)
		return
	}

	res := s.deps.Flags.Classify(req.Value, req.ReferenceRange, req.Gender)
	resp := ClassifyResponse{Result: res, Parsed: res.Parsed()}
	if res.Range != nil {
		resp.Range = res.Range.String()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateReport(c *gin.Context) {
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid report", err)
		return
	}

	report, err := s.deps.Reports.CreateReport(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.badRequest(c, "invalid limit", err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.badRequest(c, "invalid offset", err)
		return
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, total, err := s.deps.Reports.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if list == nil {
		list = []*domain.Report{}
	}
	c.JSON(http.StatusOK, ReportList{Reports: list, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetReport(c *gin.Context) {
	report, err := s.deps.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleUpdateResults(c *gin.Context) {
	var req UpdateResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid results", err)
		return
	}

	report, err := s.deps.Reports.UpdateResults(c.Request.Context(), c.Param("id"), req.Results, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var tmpl domain.TestTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		s.badRequest(c, "invalid template", err)
		return
	}
	if err := s.deps.Templates.Create(c.Request.Context(), &tmpl); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (s *Server) handleListTemplates(c *gin.Context) {
	labID := c.Query("lab_id")
	if labID == "" {
		s.badRequest(c, "lab_id is required", nil)
		return
	}
	list, err := s.deps.Templates.List(c.Request.Context(), labID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if list == nil {
		list = []*domain.TestTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	tmpl, err := s.deps.Templates.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) handleUpdateTemplate(c *gin.Context) {
	var tmpl domain.TestTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		s.badRequest(c, "invalid template", err)
		return
	}
	tmpl.ID = c.Param("id")
	if err := s.deps.Templates.Update(c.Request.Context(), &tmpl); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	if err := s.deps.Templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEvents(c *gin.Context) {
	if err := s.deps.Events.ServeWS(c.Writer, c.Request, c.Query("lab_id")); err != nil {
		// the upgrader has already written an HTTP error
		logging.Entry(c.Request.Context(), s.deps.Logger).WithError(err).Debug("WebSocket upgrade failed")
	}
}

func (s *Server) handleWhatsAppStatus(c *gin.Context) {
	wa := s.deps.WhatsApp
	resp := gin.H{
		"status": wa.Status(),
		"paired": wa.Paired(),
	}
	if qr := wa.QRCode(); qr != "" {
		resp["qr_code"] = "data:image/png;base64," + qr
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) badRequest(c *gin.Context, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrInvalidInput, message, details, logging.CorrelationID(c.Request.Context())))
}

// writeError maps a service error onto an HTTP status and APIError body.
func (s *Server) writeError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	if errors.Is(err, service.ErrTemplatesUnavailable) {
		code = domain.ErrInvalidInput
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	switch code {
	case domain.ErrInvalidInput, domain.ErrValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case domain.ErrNotFoundCode:
		status = http.StatusNotFound
		message = "resource not found"
	default:
		logging.Entry(c.Request.Context(), s.deps.Logger).WithFields(logrus.Fields{
			"path": c.FullPath(),
		}).WithError(err).Error("Request failed")
	}

	c.JSON(status, domain.NewAPIError(code, message, "", logging.CorrelationID(c.Request.Context())))
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
