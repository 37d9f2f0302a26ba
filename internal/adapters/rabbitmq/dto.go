package rabbitmq

import (
	"time"

	"property-sync-service/internal/core/domain"
)

// Заголовки сообщений
const (
	headerTraceID      = "x-trace-id"
	headerEventType    = "event-type"
	headerEventVersion = "event-version"
)

// PropagateProjectCommandDTO - команда каскада, приходит от админки или планировщика
type PropagateProjectCommandDTO struct {
	JobID     string         `json:"job_id"`
	ParentID  string         `json:"parent_id"`
	Fields    map[string]any `json:"fields"`
	ActorID   string         `json:"actor_id"`
	ActorName string         `json:"actor_name"`
}

type PropagationChildDTO struct {
	ChildID string   `json:"child_id"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
	Error   string   `json:"error,omitempty"`
}

// PropagationCompletedEventDTO - отчет о выполненном каскаде
type PropagationCompletedEventDTO struct {
	JobID       string                `json:"job_id"`
	ParentID    string                `json:"parent_id"`
	Eligible    int                   `json:"eligible"`
	Updated     int                   `json:"updated"`
	Skipped     int                   `json:"skipped"`
	Failed      int                   `json:"failed"`
	Message     string                `json:"message"`
	Children    []PropagationChildDTO `json:"children"`
	CompletedAt time.Time             `json:"completed_at"`
}

func newPropagationCompletedEvent(summary domain.PropagationSummary, completedAt time.Time) PropagationCompletedEventDTO {
	event := PropagationCompletedEventDTO{
		JobID:       summary.JobID,
		ParentID:    string(summary.ParentID),
		Eligible:    summary.Eligible,
		Updated:     summary.Updated,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Message:     summary.Message(),
		Children:    make([]PropagationChildDTO, 0, len(summary.Children)),
		CompletedAt: completedAt.UTC(),
	}
	for _, child := range summary.Children {
		event.Children = append(event.Children, PropagationChildDTO{
			ChildID: string(child.ChildID),
			Written: fieldNames(child.Written),
			Skipped: fieldNames(child.Skipped),
			Error:   child.Error,
		})
	}
	return event
}

func fieldNames(fields []domain.FieldName) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}
