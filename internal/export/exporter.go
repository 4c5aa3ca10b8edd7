package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"video-parser/internal/batch"
	"video-parser/pkg/models"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
	FormatTXT  ExportFormat = "txt"
)

// ExportConfig holds configuration for data export
type ExportConfig struct {
	Format        ExportFormat
	FilePath      string
	Columns       []string
	DateFormat    string
	Delimiter     rune
	IncludeHeader bool
}

// Record is the flat view of one batch result that every format writes
type Record struct {
	Index    int             `json:"index"`
	Input    string          `json:"input"`
	URL      string          `json:"url"`
	Platform models.Platform `json:"platform"`
	Status   string          `json:"status"`
	Code     int             `json:"code"`
	Msg      string          `json:"msg"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	MediaURL string          `json:"media_url"`
	CoverURL string          `json:"cover_url"`
	Error    string          `json:"error,omitempty"`
	Elapsed  int64           `json:"elapsed_ms"`

	Response *models.APIResponse `json:"response,omitempty"`
}

// DataExporter handles data export to different formats
type DataExporter struct {
	config ExportConfig
}

// NewDataExporter creates a new data exporter
func NewDataExporter(config ExportConfig) *DataExporter {
	// Set defaults
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if len(config.Columns) == 0 {
		config.Columns = getDefaultColumns()
	}
	config.IncludeHeader = true

	return &DataExporter{
		config: config,
	}
}

// FormatFromPath infers the format from a file extension, json when unknown
func FormatFromPath(path string) ExportFormat {
	ext := ExportFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	for _, f := range GetSupportedFormats() {
		if f == ext {
			return f
		}
	}
	return FormatJSON
}

// ExportResults exports batch results to the configured format
func (de *DataExporter) ExportResults(results []batch.BatchResult) error {
	if err := ValidateConfig(de.config); err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(de.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = ToRecord(r)
	}

	switch de.config.Format {
	case FormatCSV:
		return de.exportToCSV(records)
	case FormatXLSX:
		return de.exportToXLSX(records)
	case FormatJSON:
		return de.exportToJSON(records)
	case FormatTXT:
		return de.exportToTXT(records)
	default:
		return fmt.Errorf("unsupported export format: %s", de.config.Format)
	}
}

// exportToCSV exports data to CSV format
func (de *DataExporter) exportToCSV(records []Record) error {
	file, err := os.Create(de.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	// BOM so spreadsheet apps read the Chinese text as UTF-8
	if _, err := file.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}

	writer := csv.NewWriter(file)
	writer.Comma = de.config.Delimiter

	// Write header
	if de.config.IncludeHeader {
		if err := writer.Write(de.config.Columns); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	// Write data rows
	for _, record := range records {
		if err := writer.Write(de.recordToRow(record)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportToXLSX exports data to Excel format
func (de *DataExporter) exportToXLSX(records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Results"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	// Set header style
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// Write headers
	for i, column := range de.config.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, column); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, columnWidth(column)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// Write data rows
	for i, record := range records {
		for j, value := range de.recordToRow(record) {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	// Auto-filter
	endRange, err := excelize.CoordinatesToCellName(len(de.config.Columns), len(records)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{}); err != nil {
		return fmt.Errorf("failed to add auto filter: %w", err)
	}

	// Freeze first row
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	// Save file
	if err := f.SaveAs(de.config.FilePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}

	return nil
}

// exportToJSON exports data to JSON format
func (de *DataExporter) exportToJSON(records []Record) error {
	// Create export data structure
	exportData := struct {
		ExportedAt time.Time `json:"exported_at"`
		Count      int       `json:"count"`
		Results    []Record  `json:"results"`
	}{
		ExportedAt: time.Now(),
		Count:      len(records),
		Results:    records,
	}

	// Marshal to JSON
	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to file
	if err := os.WriteFile(de.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}

// exportToTXT exports data to plain text format
func (de *DataExporter) exportToTXT(records []Record) error {
	file, err := os.Create(de.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create TXT file: %w", err)
	}
	defer file.Close()

	var b strings.Builder

	// Write header
	fmt.Fprintf(&b, "Parse Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(de.config.DateFormat))
	fmt.Fprintf(&b, "Total Links: %d\n", len(records))
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 50))

	// Write entries
	for _, r := range records {
		fmt.Fprintf(&b, "Link %d:\n", r.Index+1)
		fmt.Fprintf(&b, "  Input: %s\n", r.Input)
		fmt.Fprintf(&b, "  Platform: %s\n", r.Platform)
		fmt.Fprintf(&b, "  Status: %s\n", r.Status)
		if r.Title != "" {
			fmt.Fprintf(&b, "  Title: %s\n", r.Title)
		}
		if r.Author != "" {
			fmt.Fprintf(&b, "  Author: %s\n", r.Author)
		}
		if r.MediaURL != "" {
			fmt.Fprintf(&b, "  Media: %s\n", r.MediaURL)
		}
		if r.CoverURL != "" {
			fmt.Fprintf(&b, "  Cover: %s\n", r.CoverURL)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", r.Error)
		}
		fmt.Fprintf(&b, "\n")
	}

	if _, err := file.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write TXT file: %w", err)
	}
	return nil
}

// recordToRow converts a Record to a row of strings
func (de *DataExporter) recordToRow(r Record) []string {
	row := make([]string, len(de.config.Columns))

	for i, column := range de.config.Columns {
		switch strings.ToLower(column) {
		case "index", "#":
			row[i] = fmt.Sprintf("%d", r.Index+1)
		case "input":
			row[i] = r.Input
		case "url", "link":
			row[i] = r.URL
		case "platform":
			row[i] = string(r.Platform)
		case "status":
			row[i] = r.Status
		case "code":
			row[i] = fmt.Sprintf("%d", r.Code)
		case "msg", "message":
			row[i] = r.Msg
		case "title":
			row[i] = r.Title
		case "author":
			row[i] = r.Author
		case "media url", "media_url", "media":
			row[i] = r.MediaURL
		case "cover url", "cover_url", "cover":
			row[i] = r.CoverURL
		case "error", "error_message":
			row[i] = r.Error
		case "elapsed", "elapsed_ms":
			row[i] = fmt.Sprintf("%d", r.Elapsed)
		default:
			row[i] = ""
		}
	}

	return row
}

// getDefaultColumns returns default column names
func getDefaultColumns() []string {
	return []string{
		"Index",
		"Platform",
		"Status",
		"Title",
		"Author",
		"Media URL",
		"Cover URL",
		"URL",
		"Error",
	}
}

func columnWidth(column string) float64 {
	switch strings.ToLower(column) {
	case "media url", "media_url", "cover url", "cover_url", "url", "input":
		return 60
	case "title", "error":
		return 40
	case "author":
		return 20
	default:
		return 12
	}
}

// GetSupportedFormats returns list of supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON, FormatTXT}
}

// ValidateConfig validates export configuration
func ValidateConfig(config ExportConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("file path is required")
	}

	supported := false
	for _, format := range GetSupportedFormats() {
		if config.Format == format {
			supported = true
			break
		}
	}

	if !supported {
		return fmt.Errorf("unsupported format: %s", config.Format)
	}

	return nil
}
