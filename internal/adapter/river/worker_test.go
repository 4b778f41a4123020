package river_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/uastudio/internal/adapter/fsm"
	riveradapter "github.com/neomorfeo/uastudio/internal/adapter/river"
	"github.com/neomorfeo/uastudio/internal/app"
	"github.com/neomorfeo/uastudio/internal/domain"
	"github.com/neomorfeo/uastudio/internal/logging"
)

func TestNoticeWorker_Work_LogsNotice(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf))
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	job := &goriver.Job[riveradapter.NoticeJobArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: 1},
		Args: riveradapter.NoticeJobArgs{
			Notice:    string(domain.NoticeSessionDeleted),
			SessionID: "s-1",
			Count:     4,
			At:        at,
		},
	}

	w := &riveradapter.NoticeWorker{}
	require.NoError(t, w.Work(ctx, job))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notice processed", line["message"])
	assert.Equal(t, "session.deleted", line["notice"])
	assert.Equal(t, "s-1", line[logging.FieldSessionID])
	assert.EqualValues(t, 4, line["count"])
	assert.EqualValues(t, 7, line["job_id"])
	assert.EqualValues(t, 1, line["attempt"])
	assert.Equal(t, false, line["exhausted"])
}

func TestNoticeWorker_Work_OmitsEmptySession(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf))

	job := &goriver.Job[riveradapter.NoticeJobArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args:   riveradapter.NoticeJobArgs{Notice: string(domain.NoticeBatchGenerated), Count: 10, Exhausted: true},
	}

	require.NoError(t, (&riveradapter.NoticeWorker{}).Work(ctx, job))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, logging.FieldSessionID)
	assert.Equal(t, true, line["exhausted"])
}

func TestEngine_GenerateBatch_RunsNoticeJob(t *testing.T) {
	client, events := startClient(t)
	engine := app.NewGenerationEngine(fsm.New(), app.WithPublisher(riveradapter.NewPublisher(client)))

	batch, err := engine.GenerateBatch(context.Background(), 3, domain.NewProfile("Pixel 7"), domain.Options{TokenMode: domain.TokenUUID})
	require.NoError(t, err)
	require.Len(t, batch.Agents, 3)

	event := waitCompleted(t, events)
	assert.Equal(t, "notice.published", event.Job.Kind)
	assert.Equal(t, rivertype.JobStateCompleted, event.Job.State)

	var args map[string]any
	require.NoError(t, json.Unmarshal(event.Job.EncodedArgs, &args))
	assert.Equal(t, "batch.generated", args["kind"])
	assert.EqualValues(t, 3, args["count"])
}
