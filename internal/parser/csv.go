// Package parser provides utilities for parsing and transforming input data.
// It reads the scraped CSV tables into typed rows and applies name fixes.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a cell that could not be read as its declared type.
type ParseError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: column %q: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// NameFixes maps scraped country spellings to their canonical names.
type NameFixes map[string]string

// Apply returns the canonical spelling of name.
func (n NameFixes) Apply(name string) string {
	if fixed, ok := n[name]; ok {
		return fixed
	}
	return name
}

type record struct {
	file  string
	line  int
	index map[string]int
	cells []string
}

func (r record) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

func (r record) fail(col string, err error) error {
	return &ParseError{File: r.file, Line: r.line, Column: col, Err: err}
}

// float reads an optional number. Empty and NaN cells are absent.
func (r record) float(col string) (*float64, error) {
	s := strings.TrimSpace(r.str(col))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, r.fail(col, err)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// year reads an optional year, accepting the "2020.0" form written for
// float columns.
func (r record) year(col string) (*int, error) {
	v, err := r.float(col)
	if err != nil || v == nil {
		return nil, err
	}
	if *v != math.Trunc(*v) {
		return nil, r.fail(col, fmt.Errorf("not a whole year: %v", *v))
	}
	year := int(*v)
	return &year, nil
}

func (r record) int(col string) (int, error) {
	v, err := r.float(col)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, r.fail(col, errors.New("empty value"))
	}
	return int(*v), nil
}

// readRecords reads a headed CSV stream. Every column in required must be
// present in the header; other columns are ignored.
func readRecords(r io.Reader, file string, required ...string) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", file)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", file, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s: %w %q", file, ErrMissingColumn, col)
		}
	}

	var records []record
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{file: file, line: line, index: index, cells: cells})
	}

	return records, nil
}
