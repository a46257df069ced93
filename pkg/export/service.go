package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

const (
	maxRowsPerExport = 10000
	exportTTL        = 24 * time.Hour
)

// ErrNotFound covers both missing and foreign-owned exports
var (
	ErrNotFound = errors.New("export not found")
	// ErrNotReady is returned when the download is requested before
	// generation finishes (or after it failed)
	ErrNotReady = errors.New("export is not ready")
	// ErrExpired is returned once the retention window has passed
	ErrExpired = errors.New("export has expired")
)

// Service generates downloadable CSV and Excel files from the user's data
type Service struct {
	db          *database.Client
	storagePath string
}

// NewService creates a new export service
func NewService(db *database.Client, storagePath string) *Service {
	// Ensure storage directory exists
	os.MkdirAll(storagePath, 0755)

	return &Service{db: db, storagePath: storagePath}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColExports)
}

// Create registers an export and generates the file in the background
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateExportRequest) (*models.Export, error) {
	format := req.Format
	if format == "" {
		format = models.FormatCSV
	}

	now := time.Now().UTC()
	exp := &models.Export{
		UserID:    userID,
		Resource:  req.Resource,
		Format:    format,
		Status:    models.ExportPending,
		ExpiresAt: now.Add(exportTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.col().InsertOne(ctx, exp)
	if err != nil {
		return nil, fmt.Errorf("failed creating export: %w", err)
	}
	exp.ID = res.InsertedID.(primitive.ObjectID)

	go s.process(exp.ID, userID, req.Resource, format)

	return exp, nil
}

// process generates the export file in the background
func (s *Service) process(exportID, userID primitive.ObjectID, resource, format string) {
	ctx := context.Background()

	s.setStatus(ctx, exportID, bson.M{"status": models.ExportProcessing})

	headers, rows, err := s.collectRows(ctx, userID, resource)
	if err != nil {
		log.Printf("❌ Export %s failed: %v", exportID.Hex(), err)
		s.setStatus(ctx, exportID, bson.M{"status": models.ExportFailed, "error": err.Error()})
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s-%s.%s", resource, exportID.Hex(), timestamp, format)
	path := filepath.Join(s.storagePath, filename)

	if format == models.FormatCSV {
		err = writeCSV(path, headers, rows)
	} else {
		err = writeExcel(path, sheetName(resource), headers, rows)
	}
	if err != nil {
		log.Printf("❌ Export %s failed writing file: %v", exportID.Hex(), err)
		s.setStatus(ctx, exportID, bson.M{"status": models.ExportFailed, "error": err.Error()})
		return
	}

	s.setStatus(ctx, exportID, bson.M{
		"status":    models.ExportReady,
		"row_count": len(rows),
		"file_path": path,
		"file_url":  fmt.Sprintf("/api/export/%s/download", exportID.Hex()),
	})
	log.Printf("✅ Export %s ready (%d rows)", exportID.Hex(), len(rows))
}

func (s *Service) setStatus(ctx context.Context, exportID primitive.ObjectID, set bson.M) {
	set["updated_at"] = time.Now().UTC()
	if _, err := s.col().UpdateByID(ctx, exportID, bson.M{"$set": set}); err != nil {
		log.Printf("⚠️  Failed updating export %s: %v", exportID.Hex(), err)
	}
}

// Get fetches one export by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Export, error) {
	var exp models.Export
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&exp)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching export: %w", err)
	}
	return &exp, nil
}

// List returns the user's exports, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Export, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := bson.M{"user_id": userID}

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting exports: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing exports: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Export
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding exports: %w", err)
	}
	return items, total, nil
}

// FilePath returns the on-disk path of a ready export for download
func (s *Service) FilePath(ctx context.Context, userID, id primitive.ObjectID) (string, error) {
	exp, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if exp.Status != models.ExportReady || exp.FilePath == "" {
		return "", ErrNotReady
	}
	if time.Now().After(exp.ExpiresAt) {
		return "", ErrExpired
	}
	return exp.FilePath, nil
}

// CleanupExpired deletes expired export files and their records. Used by
// the daily cron sweep; returns how many exports were removed.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	cur, err := s.col().Find(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed listing expired exports: %w", err)
	}
	defer cur.Close(ctx)

	var expired []models.Export
	if err := cur.All(ctx, &expired); err != nil {
		return 0, fmt.Errorf("failed decoding expired exports: %w", err)
	}

	removed := 0
	for _, exp := range expired {
		if exp.FilePath != "" {
			if err := os.Remove(exp.FilePath); err != nil && !os.IsNotExist(err) {
				log.Printf("⚠️  Failed removing export file %s: %v", exp.FilePath, err)
			}
		}
		if _, err := s.col().DeleteOne(ctx, bson.M{"_id": exp.ID}); err != nil {
			log.Printf("⚠️  Failed deleting export record %s: %v", exp.ID.Hex(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// collectRows loads the resource collection and flattens it into rows
func (s *Service) collectRows(ctx context.Context, userID primitive.ObjectID, resource string) ([]string, [][]string, error) {
	colName, ok := map[string]string{
		"contacts":      database.ColContacts,
		"companies":     database.ColCompanies,
		"opportunities": database.ColOpportunities,
		"activities":    database.ColActivities,
		"expenses":      database.ColExpenses,
		"leads":         database.ColLeads,
	}[resource]
	if !ok {
		return nil, nil, fmt.Errorf("unknown resource: %s", resource)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(maxRowsPerExport)

	cur, err := s.db.Collection(colName).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed loading %s: %w", resource, err)
	}
	defer cur.Close(ctx)

	switch resource {
	case "contacts":
		var items []models.Contact
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "First Name", "Last Name", "Email", "Phone", "Position", "Active", "Created At"}
		rows := make([][]string, len(items))
		for i, c := range items {
			rows[i] = []string{
				c.ID.Hex(), c.FirstName, c.LastName, c.Email, c.Phone, c.Position,
				strconv.FormatBool(c.IsActive), c.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil

	case "companies":
		var items []models.Company
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "Name", "Sector", "Website", "Email", "Phone", "City", "Country", "Status", "Priority", "Created At"}
		rows := make([][]string, len(items))
		for i, c := range items {
			rows[i] = []string{
				c.ID.Hex(), c.Name, c.Sector, c.Website, c.Email, c.Phone,
				c.Address.City, c.Address.Country, c.Status, c.Priority,
				c.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil

	case "opportunities":
		var items []models.Opportunity
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "Title", "Amount", "Status", "Probability", "Priority", "Sector", "Forecast Category", "Open Date", "Close Date", "Created At"}
		rows := make([][]string, len(items))
		for i, o := range items {
			rows[i] = []string{
				o.ID.Hex(), o.Title, fmt.Sprintf("%.2f", o.Amount), o.Status,
				strconv.Itoa(o.Probability), o.Priority, o.Sector, o.ForecastCategory,
				formatTime(o.OpenDate), formatTime(o.CloseDate),
				o.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil

	case "activities":
		var items []models.Activity
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "Title", "Type", "Status", "Start Time", "End Time", "Location", "Created At"}
		rows := make([][]string, len(items))
		for i, a := range items {
			rows[i] = []string{
				a.ID.Hex(), a.Title, a.Type, a.Status,
				a.StartTime.Format(time.RFC3339), formatTime(a.EndTime),
				a.Location, a.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil

	case "expenses":
		var items []models.Expense
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "Title", "Amount", "Tax Rate", "Tax Amount", "Total", "Category", "Date", "Billable", "Approval Status", "Created At"}
		rows := make([][]string, len(items))
		for i, e := range items {
			rows[i] = []string{
				e.ID.Hex(), e.Title, fmt.Sprintf("%.2f", e.Amount),
				fmt.Sprintf("%.2f", e.TaxRate), fmt.Sprintf("%.2f", e.TaxAmount),
				fmt.Sprintf("%.2f", e.Total), e.Category,
				e.Date.Format("2006-01-02"), strconv.FormatBool(e.Billable),
				e.ApprovalStatus, e.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil

	default: // leads
		var items []models.Lead
		if err := cur.All(ctx, &items); err != nil {
			return nil, nil, err
		}
		headers := []string{"ID", "Name", "Email", "Phone", "Company", "Status", "Temperature", "Score", "Source", "Estimated Value", "Created At"}
		rows := make([][]string, len(items))
		for i, l := range items {
			rows[i] = []string{
				l.ID.Hex(), l.Name, l.Email, l.Phone, l.CompanyName, l.Status,
				l.Temperature, strconv.Itoa(l.Score), l.Source,
				fmt.Sprintf("%.2f", l.EstimatedValue),
				l.CreatedAt.Format(time.RFC3339),
			}
		}
		return headers, rows, nil
	}
}

func sheetName(resource string) string {
	if resource == "" {
		return "Data"
	}
	return strings.ToUpper(resource[:1]) + resource[1:]
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// writeCSV writes headers and rows to a CSV file
func writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// writeExcel writes headers and rows to an Excel file
func writeExcel(path, sheetName string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		f.SetColWidth(sheetName, col, col, 18)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}
