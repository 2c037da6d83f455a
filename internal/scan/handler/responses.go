package handler

import (
	"luftscan/internal/scan"
	"luftscan/internal/sensitivity"
)

// ScanResponse carries a scan record and, right after a run, its summary.
type ScanResponse struct {
	Scan    *scan.Record         `json:"scan"`
	Summary *sensitivity.Summary `json:"summary,omitempty"`
}

type ListResponse struct {
	Scans []*scan.Record `json:"scans"`
	Count int            `json:"count"`
}
