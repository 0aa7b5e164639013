package devserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reviewdeck/internal/types"
)

const (
	// A model named "fail" errors halfway; one named "stuck" never finishes.
	failModel  = "fail"
	stuckModel = "stuck"
)

type simJob struct {
	record    types.JobRecord
	startedAt time.Time
	items     []string
	logged    int
}

func newSimJob(kind types.JobKind, payload map[string]any, items int, now time.Time) *simJob {
	job := &simJob{
		record: types.JobRecord{
			ID:             uuid.Must(uuid.NewV7()).String(),
			Status:         types.JobStatusQueued,
			Provider:       stringField(payload, "provider"),
			Model:          stringField(payload, "model"),
			ReasoningLevel: stringField(payload, "reasoning_level"),
			Total:          items,
			CreatedAt:      now,
		},
		startedAt: now,
	}
	if limit, ok := intField(payload, "max_reviews"); ok && limit > 0 && limit < items {
		job.record.Total = limit
	}
	for i := 0; i < job.record.Total; i++ {
		job.items = append(job.items, fmt.Sprintf("%s-%03d", strings.TrimSuffix(string(kind), "s"), i+1))
	}
	return job
}

// advance moves the job forward to the state it has at now. It returns the
// log lines produced since the previous call.
func (j *simJob) advance(now time.Time, step time.Duration) []string {
	if j.record.Status.Terminal() {
		return nil
	}
	elapsed := now.Sub(j.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	processed := j.record.Total
	if step > 0 {
		processed = int(elapsed / step)
	}
	if processed > j.record.Total {
		processed = j.record.Total
	}
	model := strings.ToLower(strings.TrimSpace(j.record.Model))
	switch model {
	case stuckModel:
		if processed >= j.record.Total {
			processed = j.record.Total - 1
		}
	case failModel:
		if limit := j.record.Total / 2; processed >= limit {
			processed = limit
			j.record.Status = types.JobStatusError
			j.record.Error = "simulated provider failure"
		}
	}
	if processed < 0 {
		processed = 0
	}
	if j.record.Status != types.JobStatusError {
		j.record.Status = types.JobStatusRunning
	}
	j.record.Processed = processed

	var lines []string
	for j.logged < processed && j.logged < len(j.items) {
		lines = append(lines, fmt.Sprintf("%s processed %s", j.label(), j.items[j.logged]))
		j.logged++
	}
	if processed < len(j.items) {
		j.record.CurrentItem = j.items[processed]
	} else {
		j.record.CurrentItem = ""
	}

	switch {
	case j.record.Status == types.JobStatusError:
		lines = append(lines, fmt.Sprintf("%s failed: %s", j.label(), j.record.Error))
		j.complete(now)
	case processed >= j.record.Total && model != stuckModel:
		j.record.Status = types.JobStatusCompleted
		lines = append(lines, fmt.Sprintf("%s completed", j.label()))
		j.complete(now)
	}
	return lines
}

func (j *simJob) cancel(now time.Time) {
	if j.record.Status.Terminal() {
		return
	}
	j.record.Status = types.JobStatusCancelled
	j.complete(now)
}

func (j *simJob) complete(now time.Time) {
	at := now
	j.record.CompletedAt = &at
	j.record.CurrentItem = ""
}

func (j *simJob) label() string {
	if j.record.Model == "" {
		return "job " + j.record.ID[:8]
	}
	return j.record.Provider + "/" + j.record.Model
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return strings.TrimSpace(value)
}

func intField(payload map[string]any, key string) (int, bool) {
	switch value := payload[key].(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	default:
		return 0, false
	}
}
