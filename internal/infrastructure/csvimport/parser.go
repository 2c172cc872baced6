package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Parser reads header-mapped CSV rows. It strips a UTF-8 BOM, rejects
// non-UTF-8 content, and tolerates rows with a variable field count.
type Parser struct {
	delimiter rune
	headers   []string
	headerMap map[string]int
	reader    *csv.Reader
	line      int
}

// Option is a functional option for Parser configuration
type Option func(*Parser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) Option {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// NewParser creates a parser over the reader and consumes the header row
func NewParser(r io.Reader, opts ...Option) (*Parser, error) {
	p := &Parser{
		delimiter: ',',
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	buf := bufio.NewReader(r)

	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if lead, err := buf.Peek(3); err == nil && len(lead) == 3 &&
		lead[0] == 0xEF && lead[1] == 0xBB && lead[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	if err := validateUTF8(buf); err != nil {
		return nil, err
	}

	p.reader = csv.NewReader(buf)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1

	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	if len(content) < checkSize {
		if !utf8.Valid(content) {
			return ErrInvalidEncoding
		}
		return nil
	}
	// Peek may end mid-rune; back off up to the width of one rune
	trimmed := content
	for i := 0; i < utf8.UTFMax && len(trimmed) > 0; i++ {
		if utf8.Valid(trimmed) {
			return nil
		}
		trimmed = trimmed[:len(trimmed)-1]
	}
	return ErrInvalidEncoding
}

func (p *Parser) parseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		header := strings.ToLower(strings.TrimSpace(h))
		p.headers[i] = header
		p.headerMap[header] = i
	}
	p.line = 1
	return nil
}

// Headers returns the lowercased header names in column order
func (p *Parser) Headers() []string {
	return p.headers
}

// RequireHeaders verifies the required columns exist
func (p *Parser) RequireHeaders(names ...string) error {
	missing := make([]string, 0)
	for _, name := range names {
		if _, ok := p.headerMap[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingHeadersError{Headers: missing}
	}
	return nil
}

// Row is one parsed data row. DataRow is 1-based and counts data rows only;
// LineNumber is the physical line in the file including the header.
type Row struct {
	DataRow    int
	LineNumber int
	Data       map[string]string
}

// Get returns the trimmed value for a column
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow reads the next data row, io.EOF at the end of the file. A
// malformed row comes back as a RowError so the caller can record it and
// keep reading.
func (p *Parser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, NewRowError(p.line-1, "", ErrCodeMalformedRow, err.Error())
	}

	row := &Row{
		DataRow:    p.line - 1,
		LineNumber: p.line,
		Data:       make(map[string]string, len(p.headers)),
	}
	for i, header := range p.headers {
		if i < len(record) {
			row.Data[header] = strings.TrimSpace(record[i])
		} else {
			row.Data[header] = ""
		}
	}
	return row, nil
}
