package domain

import "strings"

// Severity captures how a reported condition affected the operation.
type Severity string

// Severities determine whether the operation was applied and how it is logged.
const (
	// SeverityBlock means the operation was rejected and state is unchanged.
	SeverityBlock Severity = "block"
	// SeverityWarn means the operation applied but the data has a quality problem.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// IssueCode identifies a reported condition.
type IssueCode string

// Reported condition codes surfaced to the interactive layer.
const (
	IssueDegeneratePeak     IssueCode = "degenerate_peak"
	IssueDuplicateRetention IssueCode = "duplicate_retention_time"
	IssueZeroScale          IssueCode = "zero_scale_factor"
	IssueInvalidFactor      IssueCode = "invalid_factor"
	IssueBoundsNotFound     IssueCode = "bounds_not_found"
	IssueNothingToUndo      IssueCode = "nothing_to_undo"
	IssueNothingToRedo      IssueCode = "nothing_to_redo"
	IssueNoReference        IssueCode = "no_reference_peak"
	IssueNoSamples          IssueCode = "no_samples"
	IssueMissingSource      IssueCode = "missing_source"
	IssueUnsupportedContent IssueCode = "unsupported_content"
)

// Issue reports a recoverable condition met during an operation.
type Issue struct {
	Code     IssueCode
	Severity Severity
	Message  string
	Trace    string
	// Peak is the 1-based position of the peak concerned, 0 when not peak specific.
	Peak int
}

// Result aggregates issues reported by an operation.
type Result struct {
	Issues []Issue
}

// Merge appends issues from another result.
func (r *Result) Merge(other Result) {
	if len(other.Issues) == 0 {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Add appends a single issue.
func (r *Result) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// HasBlocking returns true if the operation was rejected.
func (r Result) HasBlocking() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Has reports whether an issue with the code is present.
func (r Result) Has(code IssueCode) bool {
	for _, is := range r.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Messages joins the issue messages for display.
func (r Result) Messages() string {
	msgs := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		msgs = append(msgs, is.Message)
	}
	return strings.Join(msgs, "\n")
}

// Blocked returns a result holding one blocking issue.
func Blocked(code IssueCode, trace, msg string) Result { return blocked(code, trace, msg) }

func blocked(code IssueCode, trace, msg string) Result {
	return Result{Issues: []Issue{{Code: code, Severity: SeverityBlock, Message: msg, Trace: trace}}}
}
