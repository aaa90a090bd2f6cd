package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// ItemObserver receives the outcome of every processed item.
type ItemObserver interface {
	ObserveItem(resource, operation, result string)
}

// Batch is one invocation of the node: the parameters shared by every item,
// the items themselves and the host's continue-on-fail flag.
type Batch struct {
	Parameters     Params
	Items          []Item
	ContinueOnFail bool
}

// batchDocument is the JSON shape of a batch, shared by the bridge and the CLI.
type batchDocument struct {
	Parameters     Params `json:"parameters"`
	Items          []Item `json:"items"`
	ContinueOnFail *bool  `json:"continue_on_fail,omitempty"`
}

// DecodeBatch reads {parameters, items, continue_on_fail} from r. Numbers are
// kept as json.Number so large IDs survive. continueOnFail applies when the
// document does not say; an empty item list becomes a single empty item, as
// for a manual run.
func DecodeBatch(r io.Reader, continueOnFail bool) (Batch, error) {
	var doc batchDocument
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Batch{}, fmt.Errorf("invalid JSON: %w", err)
	}
	b := Batch{Parameters: doc.Parameters, Items: doc.Items, ContinueOnFail: continueOnFail}
	if doc.ContinueOnFail != nil {
		b.ContinueOnFail = *doc.ContinueOnFail
	}
	if b.Parameters == nil {
		b.Parameters = Params{}
	}
	if len(b.Items) == 0 {
		b.Items = []Item{{}}
	}
	return b, nil
}

// Dispatcher translates parsed operations into REST calls against one site.
type Dispatcher struct {
	transport       Transport
	options         *OptionCache
	credentialID    string
	resolveRESTBase bool
	logger          *slog.Logger
	observer        ItemObserver
	progress        func(string)
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithOptionCache lets the dispatcher consult discovered types for the given
// credential when resolving post-like paths.
func WithOptionCache(c *OptionCache, credentialID string) DispatcherOption {
	return func(d *Dispatcher) {
		d.options = c
		d.credentialID = credentialID
	}
}

// WithRESTBaseResolution makes post-like resources use the rest_base of a
// known type instead of the raw slug.
func WithRESTBaseResolution(enabled bool) DispatcherOption {
	return func(d *Dispatcher) { d.resolveRESTBase = enabled }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithItemObserver reports every processed item.
func WithItemObserver(o ItemObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithProgress receives one human-readable line per processed item.
func WithProgress(fn func(string)) DispatcherOption {
	return func(d *Dispatcher) { d.progress = fn }
}

// NewDispatcher creates a dispatcher over t.
func NewDispatcher(t Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute processes the batch items one at a time, in order. A failing item
// either becomes an error record (ContinueOnFail) or aborts the batch with an
// *ItemError and no records.
func (d *Dispatcher) Execute(ctx context.Context, b Batch) ([]Record, error) {
	records := make([]Record, 0, len(b.Items))
	for i := range b.Items {
		if err := ctx.Err(); err != nil {
			return nil, &ItemError{Index: i, Err: err}
		}
		item := &b.Items[i]
		params := b.Parameters.Merge(item.Params)
		resource := params.String("resource", "post")
		operation := OperationName(params.String("operation", string(OpCreate)))

		resp, err := d.executeItem(ctx, resource, operation, params, item, i)
		if err != nil {
			d.observe(resource, operation, "error")
			if b.ContinueOnFail {
				d.logger.Warn("item failed, continuing", "index", i, "resource", resource, "operation", operation, "error", err)
				d.report(fmt.Sprintf("item %d: %s %s failed: %v", i, operation, resource, err))
				records = append(records, errorRecord(i, err))
				continue
			}
			d.logger.Error("item failed, aborting batch", "index", i, "resource", resource, "operation", operation, "error", err)
			d.report(fmt.Sprintf("item %d: %s %s failed: %v", i, operation, resource, err))
			return nil, &ItemError{Index: i, Err: err}
		}
		d.observe(resource, operation, "ok")
		out := toRecords(i, resp)
		d.report(fmt.Sprintf("item %d: %s %s ok (%d record(s))", i, operation, resource, len(out)))
		records = append(records, out...)
	}
	return records, nil
}

func (d *Dispatcher) executeItem(ctx context.Context, resource string, operation OperationName, p Params, item *Item, index int) (any, error) {
	op, err := ParseOperation(resource, operation, p, item, index)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, op)
}

// Run performs the REST call(s) of a single operation.
func (d *Dispatcher) Run(ctx context.Context, op Operation) (any, error) {
	switch op := op.(type) {
	case *PostRead:
		return d.call(ctx, http.MethodGet, d.postPath(op.Resource), readQuery(op.Limit, op.Query), nil)
	case *PostCreate:
		return d.call(ctx, http.MethodPost, d.postPath(op.Resource), nil, postCreateBody(op))
	case *PostUpdate:
		return d.call(ctx, http.MethodPost, d.postPath(op.Resource)+"/"+url.PathEscape(op.ID), nil, postUpdateBody(op))
	case *PostDelete:
		return d.call(ctx, http.MethodDelete, d.postPath(op.Resource)+"/"+url.PathEscape(op.ID), forceQuery(), nil)
	case *MediaUpload:
		return d.upload(ctx, op)
	case *MediaRead:
		return d.call(ctx, http.MethodGet, "media", readQuery(op.Limit, op.Query), nil)
	case *MediaUpdate:
		return d.call(ctx, http.MethodPost, "media/"+url.PathEscape(op.ID), nil, mediaUpdateBody(op))
	case *MediaDelete:
		return d.call(ctx, http.MethodDelete, "media/"+url.PathEscape(op.ID), forceQuery(), nil)
	case *UserCreate:
		return d.call(ctx, http.MethodPost, "users", nil, userCreateBody(op))
	case *UserRead:
		return d.call(ctx, http.MethodGet, "users", readQuery(op.Limit, op.Query), nil)
	case *UserUpdate:
		return d.call(ctx, http.MethodPost, "users/"+url.PathEscape(op.ID), nil, userUpdateBody(op))
	case *UserDelete:
		q := forceQuery()
		if op.Reassign != "" {
			q.Set("reassign", op.Reassign)
		}
		return d.call(ctx, http.MethodDelete, "users/"+url.PathEscape(op.ID), q, nil)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedOperation, op)
}

func forceQuery() url.Values {
	return url.Values{"force": {"true"}}
}

func (d *Dispatcher) call(ctx context.Context, method, endpoint string, query url.Values, body map[string]any) (any, error) {
	d.logger.Debug("wordpress request", "method", method, "endpoint", endpoint, "query", query.Encode())
	return d.transport.Request(ctx, Request{Method: method, Endpoint: endpoint, Query: query, Body: body})
}

// upload sends the file, then patches metadata and re-reads the attachment
// when any metadata differs from what the upload alone produces.
func (d *Dispatcher) upload(ctx context.Context, op *MediaUpload) (any, error) {
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, op.FileName),
	}
	if op.File.MimeType != "" {
		headers["Content-Type"] = op.File.MimeType
	}
	d.logger.Debug("wordpress upload", "endpoint", "media", "file", op.FileName, "bytes", len(op.File.Data))
	resp, err := d.transport.RequestBinary(ctx, BinaryRequest{Endpoint: "media", Headers: headers, Body: op.File.Data})
	if err != nil {
		return nil, err
	}

	id, ok := responseID(resp)
	if !ok {
		return resp, nil
	}
	meta := mediaMetadata(op)
	if meta == nil {
		return resp, nil
	}
	if _, err := d.call(ctx, http.MethodPost, "media/"+url.PathEscape(id), nil, meta); err != nil {
		return nil, fmt.Errorf("updating metadata of media %s: %w", id, err)
	}
	return d.call(ctx, http.MethodGet, "media/"+url.PathEscape(id), nil, nil)
}

// postPath returns the REST path of a post-like resource. By default this is
// the slug itself; a known type whose rest_base differs is flagged, and used
// instead when resolution is enabled.
func (d *Dispatcher) postPath(resource string) string {
	if d.options == nil {
		return resource
	}
	base, ok := d.options.RESTBase(d.credentialID, resource)
	if !ok || base == resource {
		return resource
	}
	if d.resolveRESTBase {
		return base
	}
	if d.options.firstMismatch(d.credentialID, resource) {
		d.logger.Warn("resource slug differs from its REST base; calling the slug path",
			"resource", resource, "rest_base", base)
	}
	return resource
}

func (d *Dispatcher) observe(resource string, op OperationName, result string) {
	if d.observer != nil {
		d.observer.ObserveItem(resource, string(op), result)
	}
}

func (d *Dispatcher) report(line string) {
	if d.progress != nil {
		d.progress(line)
	}
}

func responseID(resp any) (string, bool) {
	obj, ok := resp.(map[string]any)
	if !ok {
		return "", false
	}
	switch id := obj["id"].(type) {
	case json.Number:
		return id.String(), id.String() != "0"
	case float64:
		return stringify(id), id != 0
	case string:
		return id, id != ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		v := fmt.Sprint(id)
		return v, v != "0"
	}
	return "", false
}
