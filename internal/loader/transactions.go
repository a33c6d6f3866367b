// Package loader validates external files at the load boundary and turns them
// into typed records.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartbuy/internal/models"
)

// Column names of the Dubai Land Department transaction export.
const (
	ColumnTransactionID = "transaction_id"
	ColumnArea          = "area_name_en"
	ColumnPropertyType  = "property_type_en"
	ColumnRooms         = "rooms_en"
	ColumnPrice         = "actual_worth"
	ColumnDate          = "instance_date"
	ColumnRegType       = "reg_type_en"
	ColumnIsOffPlan     = "is_offplan"
	ColumnSize          = "procedure_area"
	ColumnLatitude      = "latitude"
	ColumnLongitude     = "longitude"
)

var requiredColumns = []string{ColumnArea, ColumnPropertyType, ColumnRooms, ColumnPrice, ColumnDate}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"02-01-2006 15:04",
	"02/01/2006",
}

// transactionNamespace seeds deterministic transaction numbers for rows that
// carry no transaction id.
var transactionNamespace = uuid.MustParse("5b0c8a52-3f0e-4c55-9d7e-2f3c4a1e9b61")

// SchemaError reports required columns missing from an input file.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// RowError reports a row that could not be converted. Reading may continue
// after a RowError.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidDate  = errors.New("invalid date")
	ErrEmptyField   = errors.New("empty required field")
)

// TransactionReader streams transactions out of a CSV export.
type TransactionReader struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

// NewTransactionReader reads and validates the header row. The off-plan flag
// must come from either reg_type_en or is_offplan.
func NewTransactionReader(r io.Reader) (*TransactionReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Missing: append([]string(nil), requiredColumns...)}
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeColumn(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	_, hasRegType := columns[ColumnRegType]
	_, hasOffPlan := columns[ColumnIsOffPlan]
	if !hasRegType && !hasOffPlan {
		missing = append(missing, ColumnRegType+" or "+ColumnIsOffPlan)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return &TransactionReader{reader: reader, columns: columns, line: 1}, nil
}

// Next returns the next transaction, io.EOF at the end of input, or a
// *RowError for a malformed row.
func (tr *TransactionReader) Next() (models.Transaction, error) {
	record, err := tr.reader.Read()
	tr.line++
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.Transaction{}, io.EOF
		}
		return models.Transaction{}, &RowError{Line: tr.line, Err: err}
	}

	t, err := tr.parse(record)
	if err != nil {
		return models.Transaction{}, &RowError{Line: tr.line, Err: err}
	}
	return t, nil
}

// ReadAll reads every row, skipping malformed ones. Skipped rows are returned
// alongside the records.
func (tr *TransactionReader) ReadAll() ([]models.Transaction, []*RowError, error) {
	var records []models.Transaction
	var skipped []*RowError
	for {
		t, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return records, skipped, nil
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			skipped = append(skipped, rowErr)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		records = append(records, t)
	}
}

func (tr *TransactionReader) field(record []string, column string) string {
	i, ok := tr.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (tr *TransactionReader) parse(record []string) (models.Transaction, error) {
	var t models.Transaction

	for _, col := range []string{ColumnArea, ColumnPropertyType, ColumnRooms} {
		if tr.field(record, col) == "" {
			return t, fmt.Errorf("%w: %s", ErrEmptyField, col)
		}
	}
	t.Area = tr.field(record, ColumnArea)
	t.PropertyType = tr.field(record, ColumnPropertyType)
	t.Bedrooms = tr.field(record, ColumnRooms)

	price, err := strconv.ParseFloat(strings.ReplaceAll(tr.field(record, ColumnPrice), ",", ""), 64)
	if err != nil {
		return t, fmt.Errorf("%w: %q", ErrInvalidPrice, tr.field(record, ColumnPrice))
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return t, fmt.Errorf("%w: %q is not finite", ErrInvalidPrice, tr.field(record, ColumnPrice))
	}
	if price <= 0 {
		return t, fmt.Errorf("%w: %v is not positive", ErrInvalidPrice, price)
	}
	t.Price = price

	t.Date, err = parseDate(tr.field(record, ColumnDate))
	if err != nil {
		return t, err
	}

	t.RegistrationType = tr.field(record, ColumnRegType)
	if flag := tr.field(record, ColumnIsOffPlan); flag != "" {
		t.OffPlan, err = strconv.ParseBool(flag)
		if err != nil {
			return t, fmt.Errorf("invalid %s value %q", ColumnIsOffPlan, flag)
		}
	} else {
		t.OffPlan = IsOffPlanRegistration(t.RegistrationType)
	}

	t.Size = optionalFloat(tr.field(record, ColumnSize))
	t.Latitude = optionalFloat(tr.field(record, ColumnLatitude))
	t.Longitude = optionalFloat(tr.field(record, ColumnLongitude))

	t.TransactionNumber = tr.field(record, ColumnTransactionID)
	if t.TransactionNumber == "" {
		t.TransactionNumber = uuid.NewSHA1(transactionNamespace, []byte(strings.Join(record, "\x1f"))).String()
	}
	return t, nil
}

// IsOffPlanRegistration reports whether a registration type names an
// off-plan sale ("Off-Plan Properties", "off plan", ...).
func IsOffPlanRegistration(regType string) bool {
	normalized := strings.ToLower(strings.NewReplacer("-", "", " ", "", "_", "").Replace(regType))
	return strings.Contains(normalized, "offplan")
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}
