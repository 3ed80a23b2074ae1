// Package supabase talks to a hosted Supabase project over its REST APIs:
// PostgREST for table rows and the Storage API for bucket objects.
//
// Every request carries the project's anon key as "apikey" and a bearer
// token: the caller's access token when the context has one (so row-level
// policies apply to that user), otherwise the anon key itself.
//
// REST MAPPING:
//
//	Select  GET    /rest/v1/{table}?select=*&user_id=eq.{id}&order=date.desc&limit=3
//	Insert  POST   /rest/v1/{table}             Prefer: return=minimal
//	Update  PATCH  /rest/v1/{table}?id=eq.{id}
//	Delete  DELETE /rest/v1/{table}?user_id=eq.{id}
//	Upload  POST   /storage/v1/object/{bucket}/{key}   x-upsert: false
//	Public         /storage/v1/object/public/{bucket}/{key}
//
// RESTY:
// resty.Client holds what every request shares (base URL, timeout, default
// headers); c.http.R() starts a *resty.Request that adds per-call headers,
// query parameters and a body, then Get/Post/Patch/Delete sends it. A
// non-2xx status is not a Go error in resty; check() turns it into one.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/medhistory/internal/backend"
)

var _ backend.Backend = (*Client)(nil)

// Config holds the project coordinates.
type Config struct {
	URL     string        // https://<project>.supabase.co
	AnonKey string        // public anon key
	Timeout time.Duration // per request; 0 = 10s
}

// Client implements backend.Client and backend.Storage.
type Client struct {
	http    *resty.Client
	baseURL string
	anonKey string
}

// New builds a client. Requests are never retried: a failed write surfaces
// to the caller and a failed read degrades in the service layer.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/")

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, baseURL: base, anonKey: cfg.AnonKey}
}

// request starts a request authorised as the caller in ctx.
func (c *Client) request(ctx context.Context) *resty.Request {
	token := c.anonKey
	if t, ok := backend.AccessTokenFromContext(ctx); ok {
		token = t
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)
}

// filterParams renders PostgREST horizontal filters: col=eq.value.
func filterParams(filters []backend.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, "eq."+f.Value)
	}
	return params
}

func tablePath(table string) (string, error) {
	if !backend.IsTable(table) {
		return "", fmt.Errorf("%w: %q", backend.ErrUnknownTable, table)
	}
	return "/rest/v1/" + table, nil
}

// Select issues GET /rest/v1/{table}?select=*&... and decodes the JSON array
// into dest.
func (c *Client) Select(ctx context.Context, q backend.Query, dest any) error {
	path, err := tablePath(q.Table)
	if err != nil {
		return err
	}

	params := filterParams(q.Filters)
	params.Set("select", "*")
	if q.Order != nil {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		params.Set("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}

	resp, err := c.request(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err := check("select from "+q.Table, resp, err); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("supabase: decoding %s rows: %w", q.Table, err)
	}
	return nil
}

// Insert issues POST /rest/v1/{table}. PostgREST accepts an object or an
// array of objects as body.
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}

	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody(rows).
		Post(path)
	return check("insert into "+table, resp, err)
}

// Update issues PATCH /rest/v1/{table}?col=eq.value.
func (c *Client) Update(ctx context.Context, table string, values map[string]any, filters ...backend.Filter) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("supabase: refusing to update every row of %s", table)
	}

	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetQueryParamsFromValues(filterParams(filters)).
		SetBody(values).
		Patch(path)
	return check("update "+table, resp, err)
}

// Delete issues DELETE /rest/v1/{table}?col=eq.value.
func (c *Client) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	path, err := tablePath(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("supabase: refusing to delete every row of %s", table)
	}

	resp, err := c.request(ctx).
		SetQueryParamsFromValues(filterParams(filters)).
		Delete(path)
	return check("delete from "+table, resp, err)
}

// Upload issues POST /storage/v1/object/{bucket}/{key}.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req := c.request(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", fmt.Sprint(opts.Upsert)).
		SetBody(data)
	if opts.CacheControl != "" {
		req.SetHeader("cache-control", "max-age="+opts.CacheControl)
	}

	resp, err := req.Post("/storage/v1/object/" + backend.ObjectPath(bucket, key))
	if err == nil && isDuplicate(resp) {
		return fmt.Errorf("%w: %s/%s", backend.ErrObjectExists, bucket, key)
	}
	return check("upload "+bucket+"/"+key, resp, err)
}

// PublicURL returns the public object URL. It does not check the object
// exists or that the bucket is public.
func (c *Client) PublicURL(bucket, key string) string {
	return c.baseURL + "/storage/v1/object/public/" + backend.ObjectPath(bucket, key)
}

// apiError covers both the PostgREST and the Storage error bodies.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeAPIError(body []byte) apiError {
	var e apiError
	_ = json.Unmarshal(body, &e)
	return e
}

// isDuplicate recognises the Storage API's "object exists" answer, which
// depending on version is a 409 or a 400 whose body says "Duplicate".
func isDuplicate(resp *resty.Response) bool {
	switch resp.StatusCode() {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		e := decodeAPIError(resp.Body())
		text := strings.ToLower(e.Error + " " + e.Message)
		return strings.Contains(text, "duplicate") || strings.Contains(text, "already exists")
	}
	return false
}

// check maps transport errors and non-2xx responses onto backend errors.
//
// DOUBLE %w:
// fmt.Errorf accepts several %w verbs (Go 1.20+); the result unwraps to all
// of them. A timeout therefore matches backend.ErrUnavailable and still
// matches context.DeadlineExceeded from the transport error.
func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("supabase: %s: %w: %w", op, backend.ErrUnavailable, err)
	}

	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}

	e := decodeAPIError(resp.Body())
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("supabase: %s: %w: %s", op, backend.ErrUnauthorized, msg)
	case code >= 500:
		return fmt.Errorf("supabase: %s: %w: status %d: %s", op, backend.ErrUnavailable, code, msg)
	default:
		return fmt.Errorf("supabase: %s: status %d: %s", op, code, msg)
	}
}
