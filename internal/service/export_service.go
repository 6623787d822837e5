package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	"github.com/skillforge/skillforge-api/pkg/export"
	"github.com/skillforge/skillforge-api/pkg/storage"
)

type exportStatsRepository interface {
	GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error)
	AllGroupStats(ctx context.Context) ([]models.GroupStats, error)
	TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error)
	CourseRollups(ctx context.Context) ([]models.CourseRollup, error)
}

type exportPaymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type excelRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	stats    exportStatsRepository
	payments exportPaymentRepository
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     excelRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(stats exportStatsRepository, payments exportPaymentRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		stats:    stats,
		payments: payments,
		storage:  store,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		xlsx:     export.NewExcelExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured
// ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.GroupID != nil && *job.Params.GroupID != "" {
		scope = sanitizeFilename(*job.Params.GroupID)
	} else if job.Params.CourseID != nil && *job.Params.CourseID != "" {
		scope = sanitizeFilename(*job.Params.CourseID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	case models.ReportTypeTrainerPerformance:
		return s.buildTrainerDataset(ctx)
	case models.ReportTypePayments:
		return s.buildPaymentsDataset(ctx, job.Params)
	case models.ReportTypeCourseRollup:
		return s.buildCourseRollupDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var rows []models.GroupStats
	if params.GroupID != nil && *params.GroupID != "" {
		one, err := s.stats.GroupStats(ctx, *params.GroupID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows = []models.GroupStats{*one}
	} else {
		all, err := s.stats.AllGroupStats(ctx)
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows = all
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Group":              row.GroupName,
			"Students":           fmt.Sprintf("%d", row.StudentCount),
			"Total Sessions":     fmt.Sprintf("%d", row.TotalSessions),
			"Completed":          fmt.Sprintf("%d", row.CompletedSessions),
			"Cancelled":          fmt.Sprintf("%d", row.CancelledSessions),
			"Avg Attendance (%)": fmt.Sprintf("%.2f", row.AvgAttendanceRate),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Group", "Students", "Total Sessions", "Completed", "Cancelled", "Avg Attendance (%)"},
		Rows:    dataRows,
	}
	return dataset, "Attendance Report", nil
}

func (s *ExportService) buildTrainerDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, err := s.stats.TopTrainers(ctx, 1000)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Trainer":            row.TrainerName,
			"Groups":             fmt.Sprintf("%d", row.GroupCount),
			"Total Sessions":     fmt.Sprintf("%d", row.TotalSessions),
			"Completed":          fmt.Sprintf("%d", row.CompletedSessions),
			"Cancelled":          fmt.Sprintf("%d", row.CancelledSessions),
			"Avg Attendance (%)": fmt.Sprintf("%.2f", row.AvgAttendanceRate),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Trainer", "Groups", "Total Sessions", "Completed", "Cancelled", "Avg Attendance (%)"},
		Rows:    dataRows,
	}
	return dataset, "Trainer Performance Report", nil
}

func (s *ExportService) buildPaymentsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.PaymentFilter{Page: 1, PageSize: 10000}
	rows, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		if params.From != nil && row.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && row.CreatedAt.After(*params.To) {
			continue
		}
		reference := ""
		if row.Reference != nil {
			reference = *row.Reference
		}
		dataRows = append(dataRows, map[string]string{
			"Student":    row.StudentName,
			"Course":     row.CourseName,
			"Amount":     fmt.Sprintf("%.2f", row.Amount),
			"Status":     string(row.Status),
			"Reference":  reference,
			"Created At": formatReportTime(row.CreatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Course", "Amount", "Status", "Reference", "Created At"},
		Rows:    dataRows,
	}
	return dataset, "Payments Report", nil
}

func (s *ExportService) buildCourseRollupDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, err := s.stats.CourseRollups(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Course":      row.CourseName,
			"Enrollments": fmt.Sprintf("%d", row.Enrollments),
			"Groups":      fmt.Sprintf("%d", row.GroupCount),
			"Paid Total":  fmt.Sprintf("%.2f", row.PaidTotal),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Course", "Enrollments", "Groups", "Paid Total"},
		Rows:    dataRows,
	}
	return dataset, "Course Rollup Report", nil
}

func formatReportTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
