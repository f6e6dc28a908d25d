package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// cvmCSV wraps one open CVM dataset file: semicolon-separated,
// ISO-8859-1 encoded, first row is the header.
type cvmCSV struct {
	file    *os.File
	reader  *csv.Reader
	columns map[string]int
}

// openCVMCSV opens a CVM CSV file and indexes its header row.
func openCVMCSV(path string) (*cvmCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToUpper(strings.TrimSpace(name))] = i
	}

	return &cvmCSV{file: f, reader: r, columns: columns}, nil
}

func (c *cvmCSV) Close() error {
	return c.file.Close()
}

// column returns the index of the first present column among names.
// CVM renamed several columns in the 2025 layout (e.g., CNPJ_FUNDO
// became CNPJ_FUNDO_CLASSE), so callers list both variants.
func (c *cvmCSV) column(names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := c.columns[name]; ok {
			return i, true
		}
	}
	return 0, false
}

// next reads the next data row, returning io.EOF at the end.
func (c *cvmCSV) next() ([]string, error) {
	return c.reader.Read()
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDecimal parses a CVM decimal cell. Most files use a dot decimal
// separator; a few older extracts use a comma.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty decimal cell")
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
