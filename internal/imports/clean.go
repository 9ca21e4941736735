package imports

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/loomline/designvault/pkg/db/models"
)

var (
	nonNumeric     = regexp.MustCompile(`[^\d.-]`)
	leadingFloat   = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
	leadingInteger = regexp.MustCompile(`^[+-]?\d+`)
)

// RowError describes a record dropped by validation.
type RowError struct {
	Row      int      `json:"row"`
	DesignNo string   `json:"design_no,omitempty"`
	Missing  []string `json:"missing"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: missing required fields: %s", e.Row, strings.Join(e.Missing, ", "))
}

// FoldResult splits a chunk into documents ready to persist and rejected rows.
type FoldResult struct {
	Documents []models.Document
	Rejected  []RowError
}

// Validate checks every required field is non-blank and coerces the row into
// a document. It depends only on the row's fields.
func Validate(row Row) (models.Document, error) {
	var missing []string
	for _, column := range RequiredColumns {
		if strings.TrimSpace(row.Get(column)) == "" {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return models.Document{}, &RowError{
			Row:      row.Number,
			DesignNo: strings.TrimSpace(row.Get("design_no")),
			Missing:  missing,
		}
	}

	return models.Document{
		ID:                 parseIntDefault(row.Get("id"), 0),
		CategoryID:         parseIntDefault(row.Get("category_id"), 1),
		SubcategoryID:      parseIntDefault(row.Get("subcategory_id"), 1),
		DesignNo:           strings.TrimSpace(row.Get("design_no")),
		Description:        strings.TrimSpace(row.Get("description")),
		Extension:          strings.TrimSpace(row.Get("extension")),
		FileType:           strings.TrimSpace(row.Get("file_type")),
		TotalArea:          CleanNumeric(row.Get("total_area"), 0),
		DurationMin:        CleanNumeric(row.Get("duration_min"), 0),
		TotalSwitches:      parseIntDefault(row.Get("total_switches"), 0),
		Colours:            parseIntDefault(row.Get("colours"), 0),
		Width:              CleanNumeric(row.Get("width"), 0),
		Height:             CleanNumeric(row.Get("height"), 0),
		StabilizerRequired: strings.TrimSpace(row.Get("stabilizer_required")),
		DesignOptions:      strings.TrimSpace(row.Get("design_options")),
		DesignInformation:  strings.TrimSpace(row.Get("design_information")),
		Confidential:       strings.TrimSpace(row.Get("confidential")),
		Transfer:           strings.TrimSpace(row.Get("transfer")),
	}, nil
}

// Fold validates every row of chunk, keeping accepted documents in row order.
func Fold(chunk []Row) FoldResult {
	result := FoldResult{Documents: make([]models.Document, 0, len(chunk))}
	for _, row := range chunk {
		doc, err := Validate(row)
		if err != nil {
			if rowErr, ok := err.(*RowError); ok {
				result.Rejected = append(result.Rejected, *rowErr)
			}
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	return result
}

// CleanNumeric strips everything except digits, '.' and '-' and parses the
// longest leading decimal. Blank or unparseable input yields def.
func CleanNumeric(value string, def float64) float64 {
	if strings.TrimSpace(value) == "" {
		return def
	}
	cleaned := nonNumeric.ReplaceAllString(value, "")
	match := leadingFloat.FindString(cleaned)
	if match == "" {
		return def
	}
	num, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return def
	}
	return num
}

// parseIntDefault reads the leading integer of value, ignoring surrounding
// whitespace and any trailing text. Blank or non-numeric input yields def.
func parseIntDefault(value string, def int) int {
	match := leadingInteger.FindString(strings.TrimSpace(value))
	if match == "" {
		return def
	}
	num, err := strconv.Atoi(match)
	if err != nil {
		return def
	}
	return num
}
