package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/sakif/medhistory/internal/backend"
)

// FAKES VS MOCKS:
// A mock asserts which calls happen; a fake is a small working
// implementation. Services are tested against this fake so a test states
// the data before and checks the data after, and stays valid when a service
// changes how many queries it makes. Failure injection (the *Err maps) and
// call logs (selects, deletes) cover the cases a real backend cannot be
// told to produce.
//
// The _test.go suffix keeps it out of the production binary.
//
// fakeBackend is an in-memory backend.Backend. Rows are kept as decoded
// JSON maps, the same shape the hosted backend returns. Setting an entry in
// one of the *Err maps makes every call on that table fail.
type fakeBackend struct {
	mu      sync.Mutex
	rows    map[string][]map[string]any
	objects map[string]fakeObject
	nextID  int

	selectErr map[string]error
	insertErr map[string]error
	updateErr map[string]error
	deleteErr map[string]error
	uploadErr error

	selects []backend.Query
	deletes []string
}

type fakeObject struct {
	data []byte
	opts backend.UploadOptions
}

var _ backend.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:      make(map[string][]map[string]any),
		objects:   make(map[string]fakeObject),
		selectErr: make(map[string]error),
		insertErr: make(map[string]error),
		updateErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

func matches(row map[string]any, filters []backend.Filter) bool {
	for _, f := range filters {
		if fmt.Sprint(row[f.Column]) != f.Value {
			return false
		}
	}
	return true
}

func (f *fakeBackend) Select(_ context.Context, q backend.Query, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, q)
	if err := f.selectErr[q.Table]; err != nil {
		return err
	}

	var out []map[string]any
	for _, row := range f.rows[q.Table] {
		if matches(row, q.Filters) {
			out = append(out, row)
		}
	}
	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fmt.Sprint(out[i][col]), fmt.Sprint(out[j][col])
			if asc {
				return a < b
			}
			return a > b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []map[string]any{}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeBackend) Insert(_ context.Context, table string, rows any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[table]; err != nil {
		return err
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err != nil {
		var one map[string]any
		if err := json.Unmarshal(raw, &one); err != nil {
			return err
		}
		many = []map[string]any{one}
	}
	for _, row := range many {
		if id, _ := row["id"].(string); id == "" {
			f.nextID++
			row["id"] = fmt.Sprintf("row-%d", f.nextID)
		}
		f.rows[table] = append(f.rows[table], row)
	}
	return nil
}

func (f *fakeBackend) Update(_ context.Context, table string, values map[string]any, filters ...backend.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[table]; err != nil {
		return err
	}
	for _, row := range f.rows[table] {
		if matches(row, filters) {
			for k, v := range values {
				row[k] = v
			}
		}
	}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, table string, filters ...backend.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, table)
	if err := f.deleteErr[table]; err != nil {
		return err
	}
	kept := f.rows[table][:0]
	for _, row := range f.rows[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	f.rows[table] = kept
	return nil
}

func (f *fakeBackend) Upload(_ context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	path := bucket + "/" + key
	if _, ok := f.objects[path]; ok && !opts.Upsert {
		return backend.ErrObjectExists
	}
	f.objects[path] = fakeObject{data: append([]byte(nil), data...), opts: opts}
	return nil
}

func (f *fakeBackend) PublicURL(bucket, key string) string {
	return "https://cdn.test/" + backend.ObjectPath(bucket, key)
}

func (f *fakeBackend) object(t *testing.T, bucket, key string) fakeObject {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		t.Fatalf("object %s/%s was not uploaded", bucket, key)
	}
	return obj
}

func (f *fakeBackend) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[table])
}

// seed inserts rows directly, bypassing error injection.
func (f *fakeBackend) seed(t *testing.T, table string, rows any) {
	t.Helper()
	saved := f.insertErr[table]
	delete(f.insertErr, table)
	if err := f.Insert(context.Background(), table, rows); err != nil {
		t.Fatalf("seeding %s: %v", table, err)
	}
	if saved != nil {
		f.insertErr[table] = saved
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
