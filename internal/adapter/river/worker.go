package river

import (
	"context"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/uastudio/internal/logging"
)

// NoticeWorker consumes notice jobs and writes them to the audit log.
type NoticeWorker struct {
	river.WorkerDefaults[NoticeJobArgs]
}

// Work processes a single notice job.
func (w *NoticeWorker) Work(ctx context.Context, job *river.Job[NoticeJobArgs]) error {
	log := logging.Ctx(ctx)
	ev := log.Info().
		Str("notice", job.Args.Notice).
		Int("count", job.Args.Count).
		Bool("exhausted", job.Args.Exhausted).
		Time("at", job.Args.At).
		Int64("job_id", job.ID).
		Int("attempt", job.Attempt)
	if job.Args.SessionID != "" {
		ev = ev.Str(logging.FieldSessionID, job.Args.SessionID)
	}
	ev.Msg("notice processed")
	return nil
}
