package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// DefaultWorkers is the notice queue concurrency used when Setup is given zero.
const DefaultWorkers = 2

// Setup migrates River's tables in db and returns a client with the notice
// worker registered. The caller owns Start and Stop.
func Setup(ctx context.Context, db *sql.DB, maxWorkers int) (*Client, error) {
	driver := riversqlite.New(db)

	// River keeps its own schema next to the goose-managed blobs table.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &NoticeWorker{})

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
