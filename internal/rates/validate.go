package rates

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// Validation aggregates every structural problem found in an uploaded sheet so
// an admin can fix the file in one pass instead of resubmitting per error.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

var requiredHeaderColumns = []string{"auction", "auction name", "location", "zip", "port", "rate"}

// ValidateCSV checks a candidate ground-rate sheet before it can become the
// active table. Unlike the parser it never skips silently: all violations are
// accumulated and the upload is rejected as a whole when any exist.
func ValidateCSV(text string) Validation {
	lines := splitLines(text)
	if len(lines) < 2 {
		return Validation{Errors: []string{"file must contain a header row and at least one data row"}}
	}

	var errs []string
	header := strings.ToLower(lines[0])
	for _, column := range requiredHeaderColumns {
		if !strings.Contains(header, column) {
			errs = append(errs, fmt.Sprintf("header is missing required column %q", column))
		}
	}

	for i, line := range lines[1:] {
		lineNo := i + 2
		if fields := strings.Split(line, ","); len(fields) < 6 {
			errs = append(errs, fmt.Sprintf("line %d: expected at least 6 comma-separated columns, got %d", lineNo, len(fields)))
			continue
		}
		record, err := readRecord(line)
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		auction := strings.ToLower(strings.TrimSpace(record[0]))
		if auction != "copart" && auction != "iaai" {
			errs = append(errs, fmt.Sprintf("line %d: auction must be Copart or IAAI, got %q", lineNo, record[0]))
		}
		rate := strings.TrimSpace(record[len(record)-1])
		rate = strings.ReplaceAll(strings.TrimPrefix(rate, "$"), ",", "")
		parsed, err := strconv.Atoi(rate)
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: rate %q is not a whole number", lineNo, record[len(record)-1]))
		} else if parsed < 0 {
			errs = append(errs, fmt.Sprintf("line %d: rate must not be negative", lineNo))
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

// Template returns a minimal sheet in the accepted format. It is served to
// admins as a download and must round-trip through ValidateCSV cleanly.
func Template() string {
	return strings.Join([]string{
		"Auction,Auction Name,Location,Zip,Port,Rate",
		`Copart,GA - Savannah,Savannah,31405,"Savannah, GA",$140`,
		`IAAI,Newark,Newark,07114,"Newark, NJ",$150`,
	}, "\n") + "\n"
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func readRecord(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader.Read()
}
