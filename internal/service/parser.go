package service

import (
	"crypto/md5"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jjenkins/acervo/internal/model"
)

// Columns recognized in an ementa import file. Only title or number is
// mandatory; other columns fall back to the defaults of a new ementa.
const (
	colNumber          = "number"
	colTitle           = "title"
	colType            = "type"
	colStatus          = "status"
	colSummary         = "summary"
	colExtendedSummary = "extended_summary"
	colPublicationDate = "publication_date"
	colPublished       = "published"
	colConfidential    = "confidential"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ParsedRow is one data line of an import file
type ParsedRow struct {
	Line   int
	Ementa *model.Ementa
	Err    error
}

// ParseResult contains the rows read from an import file
type ParseResult struct {
	Rows     []ParsedRow
	Checksum string
}

// Parser reads ementa import files in CSV format
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the header and every data row. Rows that cannot be converted
// carry an error instead of an ementa; blank rows are dropped.
func (p *Parser) Parse(content []byte) (*ParseResult, error) {
	result := &ParseResult{Checksum: p.calculateChecksum(content)}

	r := csv.NewReader(strings.NewReader(string(content)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("import file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = idx
	}
	_, hasTitle := columns[colTitle]
	_, hasNumber := columns[colNumber]
	if !hasTitle && !hasNumber {
		return nil, fmt.Errorf("import file needs a %q or %q column", colTitle, colNumber)
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			result.Rows = append(result.Rows, ParsedRow{Line: line, Err: err})
			continue
		}
		line, _ := r.FieldPos(0)
		if isBlank(record) {
			continue
		}

		get := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		e, err := p.parseRow(get)
		result.Rows = append(result.Rows, ParsedRow{Line: line, Ementa: e, Err: err})
	}

	return result, nil
}

func (p *Parser) parseRow(get func(string) string) (*model.Ementa, error) {
	e := model.NewEmenta()
	e.Number = get(colNumber)
	e.Title = get(colTitle)
	e.Summary = get(colSummary)
	e.ExtendedSummary = get(colExtendedSummary)

	if raw := get(colType); raw != "" {
		t, ok := parseEmentaType(raw)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", raw)
		}
		e.Type = t
	}
	if raw := get(colStatus); raw != "" {
		st, ok := parseEmentaStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		e.Status = st
	}
	if raw := get(colPublicationDate); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		e.PublicationDate = sql.NullTime{Time: d, Valid: true}
	}

	var err error
	if e.Published, err = parseFlag(get(colPublished), true); err != nil {
		return nil, fmt.Errorf("%s: %w", colPublished, err)
	}
	if e.Confidential, err = parseFlag(get(colConfidential), false); err != nil {
		return nil, fmt.Errorf("%s: %w", colConfidential, err)
	}
	return e, nil
}

// parseEmentaType accepts the stored value or the display name
func parseEmentaType(raw string) (model.EmentaType, bool) {
	for _, t := range model.EmentaTypes {
		if strings.EqualFold(raw, string(t)) || strings.EqualFold(raw, t.DisplayName()) {
			return t, true
		}
	}
	return "", false
}

// parseEmentaStatus accepts the stored value or the display name
func parseEmentaStatus(raw string) (model.EmentaStatus, bool) {
	for _, st := range model.EmentaStatuses {
		if strings.EqualFold(raw, string(st)) || strings.EqualFold(raw, st.DisplayName()) {
			return st, true
		}
	}
	return "", false
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid publication date %q", raw)
}

func parseFlag(raw string, def bool) (bool, error) {
	switch strings.ToLower(raw) {
	case "":
		return def, nil
	case "yes", "y", "sim", "s":
		return true, nil
	case "no", "n", "não", "nao":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// calculateChecksum computes MD5 hash of content
func (p *Parser) calculateChecksum(content []byte) string {
	hash := md5.Sum(content)
	return hex.EncodeToString(hash[:])
}
