package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/benford-lab/internal/benford"
	"github.com/miradorstack/benford-lab/internal/interpret"
	"github.com/miradorstack/benford-lab/internal/metrics"
	"github.com/miradorstack/benford-lab/internal/models"
	"github.com/miradorstack/benford-lab/internal/storage"
	"github.com/miradorstack/benford-lab/internal/utils"
)

// URL prefixes under which generated artefacts are served.
const (
	PlotURLPrefix   = "/static/images/"
	ReportURLPrefix = "/static/reports/"
)

// MsgUnexpected is shown for failures that carry no user-facing message.
const MsgUnexpected = "An unexpected error occurred."

// AnalysisService runs the Benford engine and packages its output.
type AnalysisService struct {
	logger  *slog.Logger
	plots   *storage.Root
	reports *storage.Root
	now     func() time.Time
}

// NewAnalysisService writes plots under plots and reports under reports.
func NewAnalysisService(logger *slog.Logger, plots, reports *storage.Root) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{logger: logger, plots: plots, reports: reports, now: time.Now}
}

// Analyze loads req.Column from req.Path, renders the plot and report and interprets the result.
// Errors carry a user-facing message readable with utils.UserMessage.
func (s *AnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	const op = "analysis.run"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	column := strings.TrimSpace(req.Column)
	if column == "" {
		return nil, utils.NewAppError(op, "Column name is required", nil)
	}

	start := s.now()
	plotName := storage.OutputName(storage.PurposePlot, "png", start)
	reportName := storage.OutputName(storage.PurposeReport, "txt", start)
	_, plotPath, err := s.plots.Resolve(plotName)
	if err != nil {
		return nil, utils.NewAppError(op, MsgUnexpected, err)
	}
	_, reportPath, err := s.reports.Resolve(reportName)
	if err != nil {
		return nil, utils.NewAppError(op, MsgUnexpected, err)
	}

	analyzer := benford.NewAnalyzer(s.logger)
	res, err := analyzer.Run(req.Path, column, plotPath, reportPath)
	duration := time.Since(start)
	plotFailed, reportFailed := errors.Is(err, benford.ErrPlotFailed), errors.Is(err, benford.ErrReportFailed)
	if res != nil && plotFailed != reportFailed {
		s.logger.Warn("analysis output incomplete", slog.String("column", column), slog.Any("error", err))
		if plotFailed {
			plotName = ""
		} else {
			reportName = ""
		}
		err = nil
	}
	if err != nil {
		outcome, appErr := s.translate(req.Path, column, err)
		metrics.ObserveAnalysis(duration, outcome)
		if outcome == metrics.OutcomeError {
			s.logger.Error("analysis failed", slog.String("column", column), slog.Any("error", err))
		} else {
			s.logger.Warn("analysis rejected", slog.String("column", column), slog.Any("error", err))
		}
		return nil, appErr
	}
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	s.logger.Info("analysis completed",
		slog.String("column", column),
		slog.Int("values", res.Count),
		slog.Float64("p_value", res.PValue),
		slog.Duration("duration", duration),
	)

	label := req.Label
	if label == "" {
		label = column
	}
	resp := &models.AnalysisResponse{
		Column:         res.Column,
		Label:          req.Label,
		Count:          res.Count,
		ChiSquared:     res.ChiSquared,
		PValue:         res.PValue,
		Conforms:       res.Conforms(),
		Conclusion:     res.Conclusion,
		Digits:         res.Digits,
		PlotName:       plotName,
		ReportName:     reportName,
		Interpretation: interpret.Interpret(&res.PValue, &res.ChiSquared, label, req.Expectation),
	}
	if plotName != "" {
		resp.PlotURL = PlotURLPrefix + plotName
	}
	if reportName != "" {
		resp.ReportURL = ReportURLPrefix + reportName
	}
	return resp, nil
}

func (s *AnalysisService) translate(path, column string, err error) (string, error) {
	const op = "analysis.run"
	var notFound *benford.ColumnNotFoundError
	switch {
	case errors.Is(err, benford.ErrFileNotFound):
		return metrics.OutcomeRejected, utils.NewAppError(op, "Uploaded file not found. Please upload again.", err)
	case errors.As(err, &notFound):
		if len(notFound.Available) > 0 {
			msg := fmt.Sprintf("Column '%s' not found or not numeric. Available numeric columns: %s",
				column, strings.Join(notFound.Available, ", "))
			return metrics.OutcomeRejected, utils.NewAppError(op, msg, err)
		}
		msg := "No numeric columns found in the CSV."
		if summary, inspectErr := benford.Inspect(path, 0); inspectErr == nil && len(summary.Columns) > 0 {
			msg += " Available columns: " + strings.Join(summary.Columns, ", ")
		}
		return metrics.OutcomeRejected, utils.NewAppError(op, msg, err)
	case errors.Is(err, benford.ErrNoNumericData):
		msg := fmt.Sprintf("Column '%s' contains no usable numeric values.", column)
		return metrics.OutcomeRejected, utils.NewAppError(op, msg, err)
	default:
		return metrics.OutcomeError, utils.NewAppError(op, MsgUnexpected, err)
	}
}

// Preview summarises a stored upload. maxRows <= 0 disables the row cap.
func Preview(upload storage.Upload, maxRows int) (*models.PreviewResponse, error) {
	summary, err := benford.Inspect(upload.Path, maxRows)
	if err != nil {
		switch {
		case errors.Is(err, benford.ErrTooManyRows):
			msg := fmt.Sprintf("Dataset has more than %d rows. Please choose a smaller file.", maxRows)
			return nil, utils.NewAppError("analysis.preview", msg, err)
		case errors.Is(err, benford.ErrFileNotFound):
			return nil, utils.NewAppError("analysis.preview", "Uploaded file not found. Please upload again.", err)
		}
		return nil, utils.NewAppError("analysis.preview", "Error reading CSV file.", err)
	}
	return &models.PreviewResponse{
		Filename:       upload.Name,
		Columns:        summary.Columns,
		NumericColumns: summary.NumericColumns,
		RowCount:       summary.RowCount,
		Rows:           summary.Preview,
	}, nil
}
