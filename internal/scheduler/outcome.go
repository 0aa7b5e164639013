package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"reviewdeck/internal/types"
)

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeError     OutcomeStatus = "error"
	OutcomeCancelled OutcomeStatus = "cancelled"
	OutcomeTimedOut  OutcomeStatus = "timed_out"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

type Outcome struct {
	Target  types.RunTarget
	JobID   string
	Status  OutcomeStatus
	Job     *types.JobRecord
	Err     error
	Elapsed time.Duration
}

// Message is the human-readable failure reason, if any.
func (o Outcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Job != nil && strings.TrimSpace(o.Job.Error) != "" {
		return strings.TrimSpace(o.Job.Error)
	}
	if o.Status == OutcomeTimedOut {
		return "stopped watching after " + o.Elapsed.Round(time.Second).String()
	}
	return ""
}

func outcomeFromJob(target types.RunTarget, job types.JobRecord, elapsed time.Duration) Outcome {
	status := OutcomeCompleted
	switch job.Status {
	case types.JobStatusError:
		status = OutcomeError
	case types.JobStatusCancelled:
		status = OutcomeCancelled
	}
	return Outcome{Target: target, JobID: job.ID, Status: status, Job: &job, Elapsed: elapsed}
}

type Summary map[OutcomeStatus]int

func Summarize(outcomes []Outcome) Summary {
	summary := Summary{}
	for _, outcome := range outcomes {
		summary[outcome.Status]++
	}
	return summary
}

func (s Summary) Succeeded() bool {
	total := 0
	for _, n := range s {
		total += n
	}
	return total > 0 && s[OutcomeCompleted] == total
}

func (s Summary) String() string {
	if len(s) == 0 {
		return "no targets"
	}
	statuses := make([]string, 0, len(s))
	for status := range s {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, s[OutcomeStatus(status)]))
	}
	return strings.Join(parts, " ")
}

// Report renders outcomes as a markdown document.
func Report(kind types.JobKind, outcomes []Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run report: %s\n\n", kind)
	if len(outcomes) == 0 {
		b.WriteString("_No targets were run._\n")
		return b.String()
	}
	b.WriteString("| # | Target | Status | Job | Processed | Elapsed | Note |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for i, outcome := range outcomes {
		processed := "-"
		if outcome.Job != nil {
			processed = fmt.Sprintf("%d/%d", outcome.Job.Processed, outcome.Job.Total)
		}
		jobID := outcome.JobID
		if jobID == "" {
			jobID = "-"
		}
		elapsed := "-"
		if outcome.Elapsed > 0 {
			elapsed = types.FormatETA(outcome.Elapsed)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | `%s` | %s | %s | %s |\n",
			i+1,
			escapeCell(outcome.Target.Label()),
			outcome.Status,
			jobID,
			processed,
			elapsed,
			escapeCell(outcome.Message()),
		)
	}
	fmt.Fprintf(&b, "\n**Summary:** %s\n", Summarize(outcomes))
	return b.String()
}

func escapeCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", `\|`)
}
