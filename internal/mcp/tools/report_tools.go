package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/mcp/protocol"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/service"
)

// Tool names
const (
	ToolClassifyResult = "classify_result"
	ToolFlagReport     = "flag_report"
	ToolSaveReport     = "save_report"
	ToolGetReport      = "get_report"
	ToolListReports    = "list_reports"
	ToolExportReports  = "export_reports"
	ToolImportReports  = "import_reports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// =============================================================================
// Classify Result Tool
// =============================================================================

// ClassifyResultTool implements the classify_result MCP tool
type ClassifyResultTool struct {
	logger   *logrus.Logger
	flags    *service.FlagService
	cache    ResultCache
	cacheTTL time.Duration
}

// ClassifyResultParams defines parameters for the classify_result tool
type ClassifyResultParams struct {
	Value          string `json:"value"`
	ReferenceRange string `json:"reference_range"`
	Gender         string `json:"gender,omitempty"`
}

// ClassifyResultResult defines the result of classify_result
type ClassifyResultResult struct {
	Flag   domain.Flag `json:"flag"`
	Symbol string      `json:"symbol,omitempty"`
	Rule   string      `json:"rule"`
	Reason string      `json:"reason"`
	Parsed bool        `json:"parsed"`
}

// NewClassifyResultTool creates a new classify_result tool
func NewClassifyResultTool(logger *logrus.Logger, flags *service.FlagService, cache ResultCache, ttl time.Duration) *ClassifyResultTool {
	return &ClassifyResultTool{logger: logger, flags: flags, cache: cache, cacheTTL: ttl}
}

// GetToolInfo returns the tool information for classify_result
func (t *ClassifyResultTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolClassifyResult,
		Description: "Classify a single lab value against its reference range. Returns normal, low or high with the rule that matched.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"value": map[string]interface{}{
					"type":        "string",
					"description": "Observed value as entered, e.g. \"13.2\" or \"Reactive\"",
				},
				"reference_range": map[string]interface{}{
					"type":        "string",
					"description": "Reference range text, e.g. \"13-17\", \"M: 13-17, F: 12-15\", \"< 6\", \"Up to 40\"",
				},
				"gender": map[string]interface{}{
					"type":        "string",
					"description": "Patient gender, used for gender-split ranges (optional)",
				},
			},
			"required": []string{"value", "reference_range"},
		},
	}
}

// ValidateParams validates the input parameters
func (t *ClassifyResultTool) ValidateParams(params interface{}) error {
	var p ClassifyResultParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Value == "" && p.ReferenceRange == "" {
		return fmt.Errorf("value or reference_range is required")
	}
	return nil
}

// HandleTool handles the classify_result tool request
func (t *ClassifyResultTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params ClassifyResultParams
	if err := ParseParams(req.Params, &params); err != nil {
		return invalidParamsError("Invalid parameters", err.Error())
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}

	return cachedResult(ctx, t.cache, t.cacheTTL, ToolClassifyResult, params, func() (interface{}, *protocol.JSONRPC2Response) {
		res := t.flags.Classify(params.Value, params.ReferenceRange, params.Gender)
		t.logger.WithFields(logrus.Fields{
			"rule": res.Rule,
			"flag": res.Flag,
		}).Debug("Classified value")
		return ClassifyResultResult{
			Flag:   res.Flag,
			Symbol: res.Flag.Symbol(),
			Rule:   string(res.Rule),
			Reason: res.Reason,
			Parsed: res.Parsed(),
		}, nil
	})
}

// =============================================================================
// Flag Report Tool
// =============================================================================

// FlagReportTool implements the flag_report MCP tool
type FlagReportTool struct {
	logger *logrus.Logger
	flags  *service.FlagService
}

// FlagReportParams defines parameters for the flag_report tool
type FlagReportParams struct {
	Gender   string               `json:"gender,omitempty"`
	Results  []domain.ResultRow   `json:"results"`
	Template *domain.TestTemplate `json:"template,omitempty"`
}

// FlagReportResult defines the result of flag_report
type FlagReportResult struct {
	Results       []domain.ResultRow `json:"results"`
	AbnormalCount int                `json:"abnormal_count"`
}

// NewFlagReportTool creates a new flag_report tool
func NewFlagReportTool(logger *logrus.Logger, flags *service.FlagService) *FlagReportTool {
	return &FlagReportTool{logger: logger, flags: flags}
}

// GetToolInfo returns the tool information for flag_report
func (t *FlagReportTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolFlagReport,
		Description: "Flag every result row of a report. Rows without a reference range or unit take them from the optional template, whose panic limits escalate values to critical.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"gender": map[string]interface{}{
					"type":        "string",
					"description": "Patient gender (optional)",
				},
				"results": map[string]interface{}{
					"type":        "array",
					"description": "Result rows with parameter, value and reference_range",
					"items":       resultRowSchema(),
				},
				"template": map[string]interface{}{
					"type":        "object",
					"description": "Test template supplying default ranges and panic limits (optional)",
				},
			},
			"required": []string{"results"},
		},
	}
}

// ValidateParams validates the input parameters
func (t *FlagReportTool) ValidateParams(params interface{}) error {
	var p FlagReportParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if len(p.Results) == 0 {
		return fmt.Errorf("results must contain at least one row")
	}
	for i, row := range p.Results {
		if row.Parameter == "" {
			return fmt.Errorf("results[%d].parameter is required", i)
		}
	}
	return nil
}

// HandleTool handles the flag_report tool request
func (t *FlagReportTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params FlagReportParams
	if err := ParseParams(req.Params, &params); err != nil {
		return invalidParamsError("Invalid parameters", err.Error())
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}

	rows := t.flags.FlagRows(params.Results, domain.ParseGender(params.Gender), params.Template)
	return &protocol.JSONRPC2Response{
		Result: FlagReportResult{
			Results:       rows,
			AbnormalCount: service.CountAbnormal(rows),
		},
	}
}

// =============================================================================
// Save Report Tool
// =============================================================================

// SaveReportTool implements the save_report MCP tool
type SaveReportTool struct {
	logger *logrus.Logger
	flags  *service.FlagService
	store  reports.Store
	cache  ResultCache
	labID  string
}

// SaveReportParams defines parameters for the save_report tool
type SaveReportParams struct {
	Report domain.Report `json:"report"`
}

// SaveReportResult defines the result of save_report
type SaveReportResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Report  *domain.Report `json:"report"`
}

// NewSaveReportTool creates a new save_report tool
func NewSaveReportTool(logger *logrus.Logger, flags *service.FlagService, store reports.Store, cache ResultCache, labID string) *SaveReportTool {
	return &SaveReportTool{logger: logger, flags: flags, store: store, cache: cache, labID: labID}
}

// GetToolInfo returns the tool information for save_report
func (t *SaveReportTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolSaveReport,
		Description: "Flag and save a report. Omit the id to create a new report; pass an existing id to replace it.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"report": map[string]interface{}{
					"type":        "object",
					"description": "Report document: test_name, patient, results and status (draft or final)",
					"properties": map[string]interface{}{
						"id":        map[string]interface{}{"type": "string"},
						"lab_id":    map[string]interface{}{"type": "string"},
						"test_name": map[string]interface{}{"type": "string"},
						"status": map[string]interface{}{
							"type": "string",
							"enum": []string{string(domain.ReportDraft), string(domain.ReportFinal)},
						},
						"patient": map[string]interface{}{"type": "object"},
						"results": map[string]interface{}{
							"type":  "array",
							"items": resultRowSchema(),
						},
					},
					"required": []string{"test_name"},
				},
			},
			"required": []string{"report"},
		},
	}
}

// ValidateParams validates the input parameters
func (t *SaveReportTool) ValidateParams(params interface{}) error {
	var p SaveReportParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Report.TestName == "" {
		return fmt.Errorf("report.test_name is required")
	}
	return nil
}

// HandleTool handles the save_report tool request
func (t *SaveReportTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params SaveReportParams
	if err := ParseParams(req.Params, &params); err != nil {
		return invalidParamsError("Invalid parameters", err.Error())
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}

	report := params.Report
	if report.LabID == "" {
		report.LabID = t.labID
	}
	if report.Status == "" {
		report.Status = domain.ReportDraft
	}
	report.Patient.Gender = domain.ParseGender(string(report.Patient.Gender))
	report.Results = t.flags.FlagRows(report.Results, report.Patient.Gender, nil)
	report.AbnormalCount = service.CountAbnormal(report.Results)

	if err := report.Validate(); err != nil {
		return invalidParamsError("Invalid report", err.Error())
	}

	if err := t.store.Save(ctx, &report); err != nil {
		t.logger.WithError(err).Error("Failed to save report")
		return internalError("Failed to save report", err.Error())
	}

	if t.cache != nil {
		for _, tool := range []string{ToolGetReport, ToolListReports} {
			if err := t.cache.InvalidateByTool(ctx, tool); err != nil {
				t.logger.WithError(err).WithField("tool", tool).Warn("Failed to invalidate cached results")
			}
		}
	}

	t.logger.WithFields(logrus.Fields{
		"report_id":      report.ID,
		"status":         report.Status,
		"abnormal_count": report.AbnormalCount,
	}).Info("Report saved")

	return &protocol.JSONRPC2Response{
		Result: SaveReportResult{
			Success: true,
			Message: fmt.Sprintf("Report %s saved with %d abnormal result(s)", report.ID, report.AbnormalCount),
			Report:  &report,
		},
	}
}

// =============================================================================
// Get Report Tool
// =============================================================================

// GetReportTool implements the get_report MCP tool
type GetReportTool struct {
	logger   *logrus.Logger
	store    reports.Store
	cache    ResultCache
	cacheTTL time.Duration
}

// GetReportParams defines parameters for the get_report tool
type GetReportParams struct {
	ID string `json:"id"`
}

// NewGetReportTool creates a new get_report tool
func NewGetReportTool(logger *logrus.Logger, store reports.Store, cache ResultCache, ttl time.Duration) *GetReportTool {
	return &GetReportTool{logger: logger, store: store, cache: cache, cacheTTL: ttl}
}

// GetToolInfo returns the tool information for get_report
func (t *GetReportTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolGetReport,
		Description: "Fetch a saved report by id, including flagged results.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Report id",
				},
			},
			"required": []string{"id"},
		},
	}
}

// ValidateParams validates the input parameters
func (t *GetReportTool) ValidateParams(params interface{}) error {
	var p GetReportParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// HandleTool handles the get_report tool request
func (t *GetReportTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params GetReportParams
	if err := ParseParams(req.Params, &params); err != nil {
		return invalidParamsError("Invalid parameters", err.Error())
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}

	return cachedResult(ctx, t.cache, t.cacheTTL, ToolGetReport, params, func() (interface{}, *protocol.JSONRPC2Response) {
		report, err := t.store.Get(ctx, params.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, toolError("Report not found", params.ID)
		}
		if err != nil {
			t.logger.WithError(err).WithField("report_id", params.ID).Error("Failed to load report")
			return nil, internalError("Failed to load report", err.Error())
		}
		return report, nil
	})
}

// =============================================================================
// List Reports Tool
// =============================================================================

// ListReportsTool implements the list_reports MCP tool
type ListReportsTool struct {
	logger   *logrus.Logger
	store    reports.Store
	cache    ResultCache
	cacheTTL time.Duration
}

// ListReportsParams defines parameters for the list_reports tool
type ListReportsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListReportsResult defines the result of list_reports
type ListReportsResult struct {
	Reports []*domain.Report `json:"reports"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// NewListReportsTool creates a new list_reports tool
func NewListReportsTool(logger *logrus.Logger, store reports.Store, cache ResultCache, ttl time.Duration) *ListReportsTool {
	return &ListReportsTool{logger: logger, store: store, cache: cache, cacheTTL: ttl}
}

// GetToolInfo returns the tool information for list_reports
func (t *ListReportsTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolListReports,
		Description: "List saved reports, newest first.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Page size (default %d, max %d)", defaultListLimit, maxListLimit),
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of reports to skip",
				},
			},
		},
	}
}

// ValidateParams validates the input parameters
func (t *ListReportsTool) ValidateParams(params interface{}) error {
	if params == nil {
		return nil
	}
	var p ListReportsParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Limit < 0 || p.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

// HandleTool handles the list_reports tool request
func (t *ListReportsTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params ListReportsParams
	if req.Params != nil {
		if err := ParseParams(req.Params, &params); err != nil {
			return invalidParamsError("Invalid parameters", err.Error())
		}
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	return cachedResult(ctx, t.cache, t.cacheTTL, ToolListReports, params, func() (interface{}, *protocol.JSONRPC2Response) {
		list, err := t.store.List(ctx, params.Limit, params.Offset)
		if err != nil {
			t.logger.WithError(err).Error("Failed to list reports")
			return nil, internalError("Failed to list reports", err.Error())
		}
		total, err := t.store.Count(ctx)
		if err != nil {
			t.logger.WithError(err).Error("Failed to count reports")
			return nil, internalError("Failed to count reports", err.Error())
		}
		if list == nil {
			list = []*domain.Report{}
		}
		return ListReportsResult{Reports: list, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
	})
}

// =============================================================================
// Export / Import Tools
// =============================================================================

// ExportReportsTool implements the export_reports MCP tool
type ExportReportsTool struct {
	logger    *logrus.Logger
	store     reports.Store
	exportDir string
}

// ExportReportsParams defines parameters for the export_reports tool
type ExportReportsParams struct {
	Path string `json:"path,omitempty"`
}

// TransferResult defines the result of export_reports and import_reports
type TransferResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
	Count    int    `json:"count"`
	Skipped  int    `json:"skipped,omitempty"`
}

// NewExportReportsTool creates a new export_reports tool
func NewExportReportsTool(logger *logrus.Logger, store reports.Store, exportDir string) *ExportReportsTool {
	return &ExportReportsTool{logger: logger, store: store, exportDir: exportDir}
}

// GetToolInfo returns the tool information for export_reports
func (t *ExportReportsTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolExportReports,
		Description: "Export all saved reports to a JSON file for backup or transfer.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Output file path (optional, defaults to a timestamped file in the export directory)",
				},
			},
		},
	}
}

// ValidateParams validates the input parameters
func (t *ExportReportsTool) ValidateParams(params interface{}) error {
	return nil
}

// HandleTool handles the export_reports tool request
func (t *ExportReportsTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params ExportReportsParams
	if req.Params != nil {
		if err := ParseParams(req.Params, &params); err != nil {
			return invalidParamsError("Invalid parameters", err.Error())
		}
	}

	path := params.Path
	if path == "" {
		path = filepath.Join(t.exportDir, fmt.Sprintf("reports-%s.json", time.Now().UTC().Format("20060102-150405")))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return internalError("Failed to create export directory", err.Error())
	}

	file, err := os.Create(path)
	if err != nil {
		return internalError("Failed to create export file", err.Error())
	}
	defer file.Close()

	if err := t.store.ExportJSON(ctx, file); err != nil {
		t.logger.WithError(err).Error("Failed to export reports")
		return internalError("Failed to export reports", err.Error())
	}

	count, err := t.store.Count(ctx)
	if err != nil {
		return internalError("Failed to count reports", err.Error())
	}

	return &protocol.JSONRPC2Response{
		Result: TransferResult{
			Success:  true,
			Message:  fmt.Sprintf("Exported %d report(s)", count),
			FilePath: path,
			Count:    count,
		},
	}
}

// ImportReportsTool implements the import_reports MCP tool
type ImportReportsTool struct {
	logger *logrus.Logger
	store  reports.Store
	cache  ResultCache
}

// ImportReportsParams defines parameters for the import_reports tool
type ImportReportsParams struct {
	Path string `json:"path"`
}

// NewImportReportsTool creates a new import_reports tool
func NewImportReportsTool(logger *logrus.Logger, store reports.Store, cache ResultCache) *ImportReportsTool {
	return &ImportReportsTool{logger: logger, store: store, cache: cache}
}

// GetToolInfo returns the tool information for import_reports
func (t *ImportReportsTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        ToolImportReports,
		Description: "Import reports from a JSON export file. Reports whose id already exists are skipped.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the export file",
				},
			},
			"required": []string{"path"},
		},
	}
}

// ValidateParams validates the input parameters
func (t *ImportReportsTool) ValidateParams(params interface{}) error {
	var p ImportReportsParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// HandleTool handles the import_reports tool request
func (t *ImportReportsTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params ImportReportsParams
	if err := ParseParams(req.Params, &params); err != nil {
		return invalidParamsError("Invalid parameters", err.Error())
	}
	if err := t.ValidateParams(req.Params); err != nil {
		return invalidParamsError(err.Error())
	}

	file, err := os.Open(params.Path)
	if err != nil {
		return invalidParamsError("Failed to open import file", err.Error())
	}
	defer file.Close()

	imported, skipped, err := t.store.ImportJSON(ctx, file)
	if err != nil {
		t.logger.WithError(err).Error("Failed to import reports")
		return internalError("Failed to import reports", err.Error())
	}

	if t.cache != nil && imported > 0 {
		for _, tool := range []string{ToolGetReport, ToolListReports} {
			if err := t.cache.InvalidateByTool(ctx, tool); err != nil {
				t.logger.WithError(err).WithField("tool", tool).Warn("Failed to invalidate cached results")
			}
		}
	}

	return &protocol.JSONRPC2Response{
		Result: TransferResult{
			Success:  true,
			Message:  fmt.Sprintf("Imported %d report(s), skipped %d existing", imported, skipped),
			FilePath: params.Path,
			Count:    imported,
			Skipped:  skipped,
		},
	}
}

func resultRowSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"parameter":       map[string]interface{}{"type": "string"},
			"section":         map[string]interface{}{"type": "string"},
			"value":           map[string]interface{}{"type": "string"},
			"unit":            map[string]interface{}{"type": "string"},
			"reference_range": map[string]interface{}{"type": "string"},
		},
		"required": []string{"parameter"},
	}
}
