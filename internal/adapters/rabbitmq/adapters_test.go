package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	logger_adapter "property-sync-service/internal/adapters/logger"
	"property-sync-service/internal/constants"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePropagateUC struct {
	calls []domain.PropagateCommand
	err   error
}

func (f *fakePropagateUC) Propagate(ctx context.Context, cmd domain.PropagateCommand) (*domain.PropagationSummary, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PropagationSummary{JobID: cmd.JobID, ParentID: cmd.ParentID}, nil
}

func newTestConsumer(uc *fakePropagateUC) *PropagationConsumerAdapter {
	return &PropagationConsumerAdapter{
		propagateUC: uc,
		logger:      logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{Writer: io.Discard, Level: slog.LevelError}),
	}
}

func commandDelivery(t *testing.T, body any) amqp.Delivery {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return amqp.Delivery{
		Body: raw,
		Headers: amqp.Table{
			headerEventType:    constants.EventPropagateProjectCommand,
			headerEventVersion: constants.EventVersionV1,
			headerTraceID:      "trace-42",
		},
	}
}

func TestMessageHandler_RunsPropagation(t *testing.T) {
	uc := &fakePropagateUC{}
	adapter := newTestConsumer(uc)

	err := adapter.messageHandler(commandDelivery(t, PropagateProjectCommandDTO{
		ParentID: "project-1",
		Fields: map[string]any{
			"amenities":    []string{"Piscina"},
			"project_name": "Torre Norte",
		},
		ActorID:   "admin-7",
		ActorName: "Ana Admin",
	}))
	require.NoError(t, err)

	require.Len(t, uc.calls, 1)
	cmd := uc.calls[0]
	assert.Equal(t, "trace-42", cmd.JobID, "job id falls back to the trace id")
	assert.Equal(t, domain.RecordID("project-1"), cmd.ParentID)
	assert.Equal(t, domain.Actor{ID: "admin-7", Name: "Ana Admin"}, cmd.Actor)
	require.Len(t, cmd.Fields, 2)
	assert.Equal(t, domain.FieldProjectName, cmd.Fields[0].Field)
	assert.Equal(t, domain.FieldAmenities, cmd.Fields[1].Field)
}

func TestMessageHandler_MissingHeadersDefaultToCommandContract(t *testing.T) {
	uc := &fakePropagateUC{}
	adapter := newTestConsumer(uc)

	d := commandDelivery(t, PropagateProjectCommandDTO{JobID: "job-1", ParentID: "project-1", Fields: map[string]any{"project_name": "X"}})
	d.Headers = nil

	require.NoError(t, adapter.messageHandler(d))
	require.Len(t, uc.calls, 1)
	assert.Equal(t, "job-1", uc.calls[0].JobID)
}

func TestMessageHandler_DropsInvalidCommands(t *testing.T) {
	cases := map[string]any{
		"schema violation": map[string]any{"fields": map[string]any{"project_name": "X"}},
		"unknown field":    PropagateProjectCommandDTO{ParentID: "project-1", Fields: map[string]any{"color": "red"}},
		"bad values": PropagateProjectCommandDTO{ParentID: "project-1", Fields: map[string]any{
			"construction_state": "demolished",
			"floor":              -3,
		}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			uc := &fakePropagateUC{}
			adapter := newTestConsumer(uc)

			assert.NoError(t, adapter.messageHandler(commandDelivery(t, body)))
			assert.Empty(t, uc.calls)
		})
	}
}

func TestMessageHandler_ErrorClassification(t *testing.T) {
	body := PropagateProjectCommandDTO{ParentID: "project-1", Fields: map[string]any{"project_name": "X"}}

	permanent := newTestConsumer(&fakePropagateUC{err: domain.ErrFieldNotPropagatable})
	assert.NoError(t, permanent.messageHandler(commandDelivery(t, body)), "permanent errors are acked")

	missing := newTestConsumer(&fakePropagateUC{err: domain.ErrRecordNotFound})
	assert.NoError(t, missing.messageHandler(commandDelivery(t, body)))

	transient := newTestConsumer(&fakePropagateUC{err: errors.New("connection reset")})
	assert.Error(t, transient.messageHandler(commandDelivery(t, body)), "transient errors go to retry")
}

type fakePublisher struct {
	routingKey string
	msg        amqp.Publishing
	err        error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	f.routingKey = routingKey
	f.msg = msg
	return f.err
}

func TestReportPropagation_PublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	reporter, err := newPropagationReporterAdapter(pub, constants.RoutingKeyPropagationResults)
	require.NoError(t, err)
	reporter.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	summary := domain.PropagationSummary{JobID: "job-1", ParentID: "project-1"}
	summary.Add(domain.PropagationReport{ChildID: "unit-1", Written: []domain.FieldName{domain.FieldProjectName}})
	summary.Add(domain.PropagationReport{ChildID: "unit-2", Skipped: []domain.FieldName{domain.FieldProjectName}})

	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-42")
	require.NoError(t, reporter.ReportPropagation(ctx, summary))

	assert.Equal(t, constants.RoutingKeyPropagationResults, pub.routingKey)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, constants.EventPropagationCompleted, pub.msg.Headers[headerEventType])
	assert.Equal(t, "trace-42", pub.msg.Headers[headerTraceID])

	var event PropagationCompletedEventDTO
	require.NoError(t, json.Unmarshal(pub.msg.Body, &event))
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, 2, event.Eligible)
	assert.Equal(t, 1, event.Updated)
	assert.Equal(t, 1, event.Skipped)
	assert.Equal(t, summary.Message(), event.Message)
	require.Len(t, event.Children, 2)
	assert.Equal(t, []string{"project_name"}, event.Children[0].Written)
	assert.Empty(t, event.Children[0].Skipped)
}

func TestReportPropagation_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	reporter, err := newPropagationReporterAdapter(pub, constants.RoutingKeyPropagationResults)
	require.NoError(t, err)

	err = reporter.ReportPropagation(context.Background(), domain.PropagationSummary{JobID: "job-1", ParentID: "project-1"})
	assert.ErrorContains(t, err, "job-1")

	_, err = newPropagationReporterAdapter(pub, "")
	assert.Error(t, err)
}

func TestPkgLoggerBridgeFields(t *testing.T) {
	assert.Nil(t, fields(nil))
	assert.Equal(t, map[string]interface{}{"queue": "q", "7": "(missing)"}, map[string]interface{}(fields([]interface{}{"queue", "q", 7})))
}
