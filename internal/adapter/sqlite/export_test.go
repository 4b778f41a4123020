package sqlite

import (
	"context"
	"time"
)

// PutRaw stores value under name verbatim so tests can plant malformed blobs.
func (r *SnapshotRepository) PutRaw(ctx context.Context, name, value string) error {
	return upsertBlob(ctx, r.db, name, value, time.Now().UTC())
}
