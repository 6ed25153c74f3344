package main

import (
	"errors"

	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
)

// fileReport is one JSON line on stdout per input file.
type fileReport struct {
	File     string                `json:"file"`
	OK       bool                  `json:"ok"`
	ImportID string                `json:"importId,omitempty"`
	Summary  *domain.ImportSummary `json:"summary,omitempty"`
	Warnings []string              `json:"warnings"`
	Errors   []domain.ParseError   `json:"errors,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func newFileReport(path string, res domain.ImportResult, err error) fileReport {
	rep := fileReport{File: path, Warnings: []string{}}
	if err == nil {
		rep.OK = true
		rep.ImportID = res.ImportID
		rep.Summary = &res.Summary
		if res.Warnings != nil {
			rep.Warnings = res.Warnings
		}
		return rep
	}

	rep.Error = err.Error()
	var fail *app.ImportFailure
	if errors.As(err, &fail) {
		rep.Errors = fail.Errors
		if fail.Warnings != nil {
			rep.Warnings = fail.Warnings
		}
	}
	return rep
}
