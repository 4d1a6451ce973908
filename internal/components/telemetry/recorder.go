package telemetry

import (
	"fmt"
	"strings"
)

// Report is a single call made against a Recorder.
type Report struct {
	ID     string
	Params []any
}

// Recorder implements API by keeping every report in memory, it is meant
// for tests that assert on what a component reported.
type Recorder struct {
	Broken   []Report
	Warnings []Report
	Infos    []Report
	Debugs   []Report
	Counts   map[string]int64
}

func NewRecorder() *Recorder {
	return &Recorder{Counts: map[string]int64{}}
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.Broken = append(r.Broken, Report{ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.Warnings = append(r.Warnings, Report{ID: id, Params: params})
}

func (r *Recorder) ReportInfo(msg string, params ...any) {
	r.Infos = append(r.Infos, Report{ID: msg, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.Debugs = append(r.Debugs, Report{ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.Counts[id] = count
}

// Lines renders the info reports as `msg params...` lines.
func (r *Recorder) Lines() []string {
	lines := make([]string, len(r.Infos))
	for i, report := range r.Infos {
		parts := []string{report.ID}
		for _, p := range report.Params {
			parts = append(parts, fmt.Sprint(p))
		}
		lines[i] = strings.Join(parts, " ")
	}
	return lines
}

// HasSuffix returns the number of reports in the list whose id ends with suffix,
// useful since ScopedAPI prefixes ids with a namespace.
func HasSuffix(reports []Report, suffix string) int {
	n := 0
	for _, r := range reports {
		if strings.HasSuffix(r.ID, suffix) {
			n++
		}
	}
	return n
}
