package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/clients"
	"github.com/AstroMined/debtonator-sub002/internal/domain"
	"github.com/AstroMined/debtonator-sub002/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type PaymentLister interface {
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.PaymentsFilter) (bool, error)
}

// ExportStorage is the destination for generated report files; local disk and
// S3 implementations live in internal/clients.
type ExportStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, savedName string) (string, error)
}

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute

	maxPaymentsForExport = 500_000
)

type PaymentColumn struct {
	Header string
	Value  func(p domain.Payment) any
}

var paymentColumns = map[string]PaymentColumn{
	"id":           {Header: "ID", Value: func(p domain.Payment) any { return p.ID }},
	"amount":       {Header: "Amount", Value: func(p domain.Payment) any { return p.Amount }},
	"payment_date": {Header: "Payment date", Value: func(p domain.Payment) any { return p.PaymentDate.Format("2006-01-02") }},
	"category":     {Header: "Category", Value: func(p domain.Payment) any { return p.Category }},
	"description": {Header: "Description", Value: func(p domain.Payment) any {
		if p.Description == nil {
			return ""
		}
		return *p.Description
	}},
	"liability_id": {Header: "Liability ID", Value: func(p domain.Payment) any {
		if p.LiabilityID == nil {
			return ""
		}
		return *p.LiabilityID
	}},
	"income_id": {Header: "Income ID", Value: func(p domain.Payment) any {
		if p.IncomeID == nil {
			return ""
		}
		return *p.IncomeID
	}},
	"sources": {Header: "Sources", Value: func(p domain.Payment) any {
		parts := make([]string, 0, len(p.Sources))
		for _, s := range p.Sources {
			parts = append(parts, fmt.Sprintf("%d: %.2f", s.AccountID, s.Amount))
		}
		return strings.Join(parts, "; ")
	}},
	"source_count": {Header: "Source count", Value: func(p domain.Payment) any { return len(p.Sources) }},
	"created_at":   {Header: "Created", Value: func(p domain.Payment) any { return timePtr(p.CreatedAt) }},
	"updated_at":   {Header: "Updated", Value: func(p domain.Payment) any { return timePtr(p.UpdatedAt) }},
}

var defaultPaymentFields = []string{
	"payment_date", "id", "amount", "category", "description",
	"liability_id", "income_id", "sources", "source_count", "created_at", "updated_at",
}

// ExportService generates XLSX reports of payments asynchronously, tracking
// job progress in Redis and notifying the requesting user over websocket.
type ExportService struct {
	payments PaymentLister
	redis    *clients.RedisClient
	storage  ExportStorage
	ws       *clients.WebSocketClient
}

func NewExportService(payments PaymentLister, redis *clients.RedisClient, storage ExportStorage, ws *clients.WebSocketClient) *ExportService {
	return &ExportService{payments: payments, redis: redis, storage: storage, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = defaultPaymentFields
	}

	tooMany, err := s.payments.HasMoreThan(ctx, maxPaymentsForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many payments to export (over %d rows)", maxPaymentsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  exportFiltersMap(filter, selected),
		Progress: 0,
		Created:  now,
	}
	_ = s.saveStatus(ctx, status)

	go s.runPaymentsExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *ExportService) runPaymentsExport(ctx context.Context, exportID string, selected []string, filter repository.PaymentsFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:     exportID,
		Type:    "payments",
		UserID:  userID,
		Filters: exportFiltersMap(filter, selected),
		Created: createdAt,
	}

	fail := func(msg string, err error) {
		errStr := fmt.Sprintf("%s: %v", msg, err)
		log.Printf("[EXPORT] %s: %s", exportID, errStr)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		fail("list payments failed", err)
		return
	}

	var cols []PaymentColumn
	for _, key := range selected {
		col, ok := paymentColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		fail("no exportable fields selected", errors.New("unknown fields"))
		return
	}

	f := excelize.NewFile()
	sheet := "Payments"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(payments)
	chunkSize := 1000
	for i, p := range payments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
		}

		if (i+1)%chunkSize == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail("write workbook failed", err)
		return
	}

	fileName := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail("save export failed", err)
		return
	}
	url, err := s.storage.URL(ctx, savedName)
	if err != nil {
		fail("resolve export url failed", err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	var exports []any
	for _, status := range statuses {
		exports = append(exports, exportView(status))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, errors.New("export not found")
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if status.UserID != userID {
		return nil, errors.New("export not found")
	}
	return exportView(status), nil
}

func exportView(status ExportStatus) map[string]any {
	return map[string]any{
		"key":        status.Key,
		"type":       status.Type,
		"user_id":    status.UserID,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"filters":    status.Filters,
		"error":      status.Error,
		"created_at": humanizeAgo(status.Created),
	}
}

func exportFiltersMap(f repository.PaymentsFilter, fields []string) map[string]any {
	m := map[string]any{
		"start_date":   nil,
		"end_date":     nil,
		"category":     nil,
		"liability_id": nil,
		"account_id":   nil,
		"fields":       fields,
	}
	if f.StartDate != nil {
		m["start_date"] = f.StartDate.Format("2006-01-02")
	}
	if f.EndDate != nil {
		m["end_date"] = f.EndDate.Format("2006-01-02")
	}
	if f.Category != nil {
		m["category"] = *f.Category
	}
	if f.LiabilityID != nil {
		m["liability_id"] = *f.LiabilityID
	}
	if f.AccountID != nil {
		m["account_id"] = *f.AccountID
	}
	return m
}

func humanizeAgo(t time.Time) string {
	now := time.Now()
	if t.After(now) {
		return "just now"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d h ago", hours)
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d d ago", days)
	}
	return t.Format("2006-01-02 15:04")
}

func timePtr(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
