package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ObjectPutter stores one object in a preconfigured bucket.
type ObjectPutter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// ObjectRecorder buffers a pass report and uploads it as one NDJSON object
// on Close. The object key is taken from the first recorded entry, so a pass
// that aborts midway still leaves a report of what it did.
type ObjectRecorder struct {
	store  ObjectPutter
	prefix string
	passID string
	day    time.Time
	buf    bytes.Buffer
	ndjson *NDJSONRecorder
	closed bool
}

func NewObjectRecorder(store ObjectPutter, prefix string) (*ObjectRecorder, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	r := &ObjectRecorder{store: store, prefix: prefix}
	r.ndjson = NewNDJSONRecorder(&r.buf)
	return r, nil
}

// ObjectKey lays reports out as <prefix>/<YYYY-MM-DD>/<pass-id>.ndjson.
func ObjectKey(prefix, passID string, day time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), day.UTC().Format("2006-01-02"), passID+".ndjson")
}

// Key is empty until the first entry is recorded.
func (r *ObjectRecorder) Key() string {
	if r.passID == "" {
		return ""
	}
	return ObjectKey(r.prefix, r.passID, r.day)
}

func (r *ObjectRecorder) Record(ctx context.Context, entry Entry) error {
	if r.closed {
		return fmt.Errorf("report %s already uploaded", r.Key())
	}
	if strings.TrimSpace(entry.PassID) == "" {
		return errors.New("report entry has no pass id")
	}
	if r.passID == "" {
		r.passID = entry.PassID
		r.day = entry.OccurredAt
	}
	return r.ndjson.Record(ctx, entry)
}

func (r *ObjectRecorder) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.buf.Len() == 0 {
		return nil
	}
	body := bytes.NewReader(r.buf.Bytes())
	if err := r.store.Put(ctx, r.Key(), body, int64(body.Len()), "application/x-ndjson"); err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	return nil
}
