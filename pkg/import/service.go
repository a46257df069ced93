package importpkg

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/contacts"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/phone"
)

// Service handles bulk import of contacts from CSV and Excel files
type Service struct {
	contacts *contacts.Service
}

// NewService creates a new import service
func NewService(contactSvc *contacts.Service) *Service {
	return &Service{contacts: contactSvc}
}

// Config holds configuration for a file import
type Config struct {
	MaxRows      int    // Maximum rows to import (0 = default cap)
	ValidateOnly bool   // Only validate, don't insert
	CountryCode  string // Parsing hint for national phone numbers
	BatchSize    int    // Rows per insert batch
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MaxRows:     10000,
		CountryCode: "US",
		BatchSize:   100,
	}
}

// RequiredFields defines the required file columns
var RequiredFields = []string{
	"first_name",
	"last_name",
}

// OptionalFields defines optional file columns
var OptionalFields = []string{
	"email",
	"phone",
	"position",
	"notes",
	"tags",
}

// Result holds the outcome of a file import
type Result struct {
	TotalRows    int                     `json:"total_rows"`
	SuccessCount int                     `json:"success_count"`
	FailureCount int                     `json:"failure_count"`
	Errors       []models.ImportRowError `json:"errors,omitempty"`
	Duration     string                  `json:"duration"`
}

// ImportCSV imports contacts from a CSV stream
func (s *Service) ImportCSV(ctx context.Context, userID primitive.ObjectID, r io.Reader, config Config) (*Result, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	rows := func(yield func([]string) (bool, error)) error {
		for {
			row, err := csvReader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if ok, err := yield(row); err != nil || !ok {
				return err
			}
		}
	}
	return s.importRows(ctx, userID, headers, rows, config)
}

// ImportXLSX imports contacts from the first sheet of an Excel stream
func (s *Service) ImportXLSX(ctx context.Context, userID primitive.ObjectID, r io.Reader, config Config) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	allRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	headers := allRows[0]
	rows := func(yield func([]string) (bool, error)) error {
		for _, row := range allRows[1:] {
			if ok, err := yield(row); err != nil || !ok {
				return err
			}
		}
		return nil
	}
	return s.importRows(ctx, userID, headers, rows, config)
}

// importRows drives the shared parse, validate and insert loop
func (s *Service) importRows(ctx context.Context, userID primitive.ObjectID, headers []string, rows func(func([]string) (bool, error)) error, config Config) (*Result, error) {
	started := time.Now()
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultConfig().MaxRows
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}

	headerMap := make(map[string]int)
	for i, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, field := range RequiredFields {
		if _, ok := headerMap[field]; !ok {
			return nil, fmt.Errorf("missing required column: %s", field)
		}
	}

	result := &Result{Errors: []models.ImportRowError{}}
	batch := make([]models.Contact, 0, config.BatchSize)
	rowNum := 1

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := s.contacts.InsertMany(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err := rows(func(row []string) (bool, error) {
		if rowNum > config.MaxRows {
			log.Printf("⚠️  Import reached max rows limit: %d", config.MaxRows)
			return false, nil
		}
		result.TotalRows++

		contact, rowErr := s.parseRow(userID, row, headerMap, rowNum, config.CountryCode)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			result.FailureCount++
			rowNum++
			return true, nil
		}

		result.SuccessCount++
		rowNum++

		if config.ValidateOnly {
			return true, nil
		}

		batch = append(batch, *contact)
		if len(batch) >= config.BatchSize {
			if err := flush(); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}
	if !config.ValidateOnly {
		if err := flush(); err != nil {
			return nil, fmt.Errorf("import failed: %w", err)
		}
	}

	result.Duration = time.Since(started).String()
	log.Printf("✅ Import finished: %d ok, %d failed (%s)", result.SuccessCount, result.FailureCount, result.Duration)
	return result, nil
}

// parseRow converts one file row into a contact document
func (s *Service) parseRow(userID primitive.ObjectID, row []string, headerMap map[string]int, rowNum int, countryCode string) (*models.Contact, *models.ImportRowError) {
	get := func(field string) string {
		idx, ok := headerMap[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	firstName := get("first_name")
	lastName := get("last_name")
	if firstName == "" || lastName == "" {
		return nil, &models.ImportRowError{Row: rowNum, Error: "first_name and last_name are required"}
	}

	email := get("email")
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, &models.ImportRowError{Row: rowNum, Error: fmt.Sprintf("invalid email: %s", email)}
		}
	}

	phoneNumber := get("phone")
	if phoneNumber != "" {
		normalized, err := phone.Normalize(phoneNumber, countryCode)
		if err != nil {
			return nil, &models.ImportRowError{Row: rowNum, Error: fmt.Sprintf("invalid phone: %s", phoneNumber)}
		}
		phoneNumber = normalized
	}

	var tags []string
	if raw := get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ";") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	now := time.Now().UTC()
	return &models.Contact{
		UserID:    userID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phoneNumber,
		Position:  get("position"),
		Notes:     get("notes"),
		Tags:      tags,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
