package operations

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Report is the record of one dispatch.
// It contains the parameters, the result and other metadata of the execution.
type Report struct {
	ID        string       `json:"id" yaml:"id"`
	Def       Definition   `json:"definition" yaml:"definition"`
	Input     any          `json:"input" yaml:"input"`
	Output    any          `json:"output" yaml:"output"`
	Timestamp *time.Time   `json:"timestamp" yaml:"timestamp"`
	Duration  string       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Err       *ReportError `json:"error" yaml:"error,omitempty"`
	// Memoized is set when the result came from the invocation scope and the handler did not run.
	Memoized bool `json:"memoized,omitempty" yaml:"memoized,omitempty"`
	// IDs of the reports of operations dispatched by this one.
	ChildOperationReports []string `json:"childOperationReports" yaml:"childOperationReports,omitempty"`
}

// NewReport creates a new report for the dispatch id.
func NewReport(
	id string, def Definition, input, output any, err error, elapsed time.Duration, childReportsID ...string,
) Report {
	ts := time.Now()
	report := Report{ID: id, Def: def, Input: input, Output: output, Timestamp: &ts, Duration: elapsed.String()}
	if len(childReportsID) > 0 {
		report.ChildOperationReports = childReportsID
	}
	if err != nil {
		report.Err = &ReportError{Message: err.Error()}
	}

	return report
}

// ReportError carries the message of a dispatch failure so it survives serialization.
type ReportError struct {
	Message string `json:"message" yaml:"message"`
}

func (o ReportError) Error() string { return o.Message }

// ErrReportNotFound is returned for an unknown report ID.
var ErrReportNotFound = errors.New("report not found")

// Reporter stores the reports of dispatches.
type Reporter interface {
	GetReport(id string) (Report, error)
	GetReports() ([]Report, error)
	AddReport(report Report) error
	GetExecutionReports(reportID string) ([]Report, error)
}

// MemoryReporter keeps reports in insertion order, indexed by ID. It is safe for concurrent
// use. A report added with an ID already present replaces the stored one in place.
type MemoryReporter struct {
	mu      sync.RWMutex
	reports []Report
	index   map[string]int
}

// MemoryReporterOption configures a MemoryReporter.
type MemoryReporterOption func(*MemoryReporter)

// WithReports seeds the reporter, e.g. with reports read back from a file.
func WithReports(reports []Report) MemoryReporterOption {
	return func(m *MemoryReporter) {
		for _, r := range reports {
			m.add(r)
		}
	}
}

// NewMemoryReporter creates an empty MemoryReporter.
func NewMemoryReporter(opts ...MemoryReporterOption) *MemoryReporter {
	m := &MemoryReporter{index: map[string]int{}}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryReporter) add(r Report) {
	if m.index == nil {
		m.index = map[string]int{}
	}
	if i, ok := m.index[r.ID]; ok {
		m.reports[i] = r
		return
	}
	m.index[r.ID] = len(m.reports)
	m.reports = append(m.reports, r)
}

func (m *MemoryReporter) AddReport(r Report) error {
	m.mu.Lock()
	m.add(r)
	m.mu.Unlock()

	return nil
}

// GetReports returns every report in insertion order.
func (m *MemoryReporter) GetReports() ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.reports), nil
}

func (m *MemoryReporter) GetReport(id string) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookup(id)
}

func (m *MemoryReporter) lookup(id string) (Report, error) {
	i, ok := m.index[id]
	if !ok {
		return Report{}, fmt.Errorf("report_id %s: %w", id, ErrReportNotFound)
	}

	return m.reports[i], nil
}

// GetExecutionReports walks the dispatch tree rooted at reportID in post-order: every
// nested dispatch comes before the dispatch that made it, the root last.
func (m *MemoryReporter) GetExecutionReports(reportID string) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Report
	var walk func(id string) error
	walk = func(id string) error {
		r, err := m.lookup(id)
		if err != nil {
			return err
		}
		for _, child := range r.ChildOperationReports {
			if err := walk(child); err != nil {
				return err
			}
		}
		out = append(out, r)

		return nil
	}
	if err := walk(reportID); err != nil {
		return nil, err
	}

	return out, nil
}

// RecentReporter forwards to a Reporter and remembers what was added through it, e.g. the
// reports of one CLI command.
type RecentReporter struct {
	Reporter

	mu     sync.Mutex
	recent []Report
}

// NewRecentMemoryReporter wraps reporter.
func NewRecentMemoryReporter(reporter Reporter) *RecentReporter {
	return &RecentReporter{Reporter: reporter}
}

func (r *RecentReporter) AddReport(report Report) error {
	if err := r.Reporter.AddReport(report); err != nil {
		return err
	}

	r.mu.Lock()
	r.recent = append(r.recent, report)
	r.mu.Unlock()

	return nil
}

// GetRecentReports returns the reports added through r, oldest first.
func (r *RecentReporter) GetRecentReports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.recent)
}
