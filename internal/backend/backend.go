// Package backend describes the remote data-backend collaborator.
//
// Every persistence and file-storage operation is delegated to a hosted
// backend-as-a-service. Services depend on the Client and Storage interfaces
// below, never on a concrete backend, so the hosted implementation
// (backend/supabase) and the embedded one (backend/sqlite) are
// interchangeable, and tests can pass an in-memory fake.
//
// IMPLICIT INTERFACES:
// Neither implementation says "implements backend.Client". A Go type
// satisfies an interface by having its methods; the check happens where a
// value is assigned to the interface type. Each implementation adds
//
//	var _ backend.Backend = (*DB)(nil)
//
// so a missing method is a compile error in its own package instead of at
// some distant call site.
package backend

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Table names shared by all implementations.
const (
	TableProfiles       = "profiles"
	TableMedicalRecords = "medical_records"
	TableVitals         = "vitals"
)

var (
	// ErrObjectExists is returned by Storage.Upload when the key is taken
	// and the upload did not ask to overwrite.
	ErrObjectExists = errors.New("backend: object already exists")
	// ErrUnauthorized means the backend rejected the caller's credentials.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrUnavailable covers network failures and 5xx responses.
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrUnknownTable / ErrUnknownColumn guard identifier whitelists.
	ErrUnknownTable  = errors.New("backend: unknown table")
	ErrUnknownColumn = errors.New("backend: unknown column")
)

// IsTable reports whether name is one of the tables above.
func IsTable(name string) bool {
	switch name {
	case TableProfiles, TableMedicalRecords, TableVitals:
		return true
	}
	return false
}

// ObjectPath joins bucket and key into an escaped URL path. Slashes inside
// key separate segments and are kept; everything else is path-escaped.
func ObjectPath(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// Filter is an equality predicate: Column = Value.
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// Order sorts the result by one column.
type Order struct {
	Column    string
	Ascending bool
}

// Query selects rows of one table.
type Query struct {
	Table   string
	Filters []Filter
	Order   *Order
	Limit   int // 0 = no limit
}

// VALUE RECEIVERS FOR A BUILDER:
// Query's methods take and return Query by value, so
//
//	base := backend.From(backend.TableVitals).Where("user_id", id)
//	latest := base.OrderBy("date", false).Take(3)
//
// leaves base untouched. Where copies the Filters slice before appending so
// two queries built from the same base never share a backing array.

// Where appends an equality filter and returns the query for chaining.
func (q Query) Where(column, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Eq(column, value))
	return q
}

// OrderBy sets the sort order.
func (q Query) OrderBy(column string, ascending bool) Query {
	q.Order = &Order{Column: column, Ascending: ascending}
	return q
}

// Take limits the number of rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// From starts a query on table.
func From(table string) Query {
	return Query{Table: table}
}

// Client reads and writes rows scoped to the authenticated user.
// Row-level access control is the backend's job.
type Client interface {
	// Select decodes the matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, q Query, dest any) error
	// Insert stores one row (struct or map) or a slice of rows.
	Insert(ctx context.Context, table string, rows any) error
	// Update sets values on every row matching filters.
	Update(ctx context.Context, table string, values map[string]any, filters ...Filter) error
	// Delete removes every row matching filters.
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// UploadOptions mirror the hosted storage API's upload flags.
type UploadOptions struct {
	ContentType  string
	CacheControl string // seconds, e.g. "3600"
	Upsert       bool   // false: refuse to overwrite an existing object
}

// Storage writes objects to a bucket.
type Storage interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	PublicURL(bucket, key string) string
}

// Backend bundles both halves of the collaborator.
type Backend interface {
	Client
	Storage
}

// An empty struct type as context key: zero size, unexported, and equal
// only to itself.
type accessTokenKey struct{}

// WithAccessToken attaches the caller's backend access token to ctx so the
// hosted backend can apply its row-level policies on the caller's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the token set by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(accessTokenKey{}).(string)
	return tok, ok && tok != ""
}
