package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	req    Request
	upload *BinaryRequest
}

// fakeTransport records every call and answers with respond (or {"id": 1}).
type fakeTransport struct {
	calls   []recordedCall
	respond func(n int, req Request) (any, error)
	upload  func(req BinaryRequest) (any, error)
}

func (f *fakeTransport) Request(_ context.Context, req Request) (any, error) {
	f.calls = append(f.calls, recordedCall{req: req})
	if f.respond != nil {
		return f.respond(len(f.calls), req)
	}
	return map[string]any{"id": 1}, nil
}

func (f *fakeTransport) RequestBinary(_ context.Context, req BinaryRequest) (any, error) {
	f.calls = append(f.calls, recordedCall{upload: &req})
	if f.upload != nil {
		return f.upload(req)
	}
	return map[string]any{"id": 42}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runOne(t *testing.T, ft *fakeTransport, params Params, item Item, opts ...DispatcherOption) ([]Record, error) {
	t.Helper()
	item.Params = params
	d := NewDispatcher(ft, append([]DispatcherOption{WithLogger(testLogger())}, opts...)...)
	return d.Execute(context.Background(), Batch{Items: []Item{item}})
}

func TestPostCreate_ACFDecoding(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource":  "post",
		"operation": "create",
		"title":     "Hello",
		"acfFields": map[string]any{"values": []any{
			map[string]any{"key": "k", "value": `"v"`},
			map[string]any{"key": "raw", "value": "not json"},
			map[string]any{"key": "list", "value": `[1,2]`},
		}},
	}, Item{})
	require.NoError(t, err)
	require.Len(t, ft.calls, 1)

	req := ft.calls[0].req
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "post", req.Endpoint)
	assert.Equal(t, "Hello", req.Body["title"])
	assert.Equal(t, "", req.Body["content"])
	assert.Equal(t, "draft", req.Body["status"])

	acf, ok := req.Body["acf"].(map[string]any)
	require.True(t, ok, "acf should be an object")
	assert.Equal(t, "v", acf["k"])
	assert.Equal(t, "not json", acf["raw"])
	assert.Equal(t, []any{1.0, 2.0}, acf["list"])
}

func TestPostCreate_OptionsBodyOverridesFields(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource":  "page",
		"operation": "create",
		"title":     "T",
		"status":    "publish",
		"options":   map[string]any{"body": map[string]any{"status": "private", "menu_order": 3}},
	}, Item{})
	require.NoError(t, err)

	body := ft.calls[0].req.Body
	assert.Equal(t, "page", ft.calls[0].req.Endpoint)
	assert.Equal(t, "private", body["status"])
	assert.Equal(t, 3, body["menu_order"])
	assert.NotContains(t, body, "acf")
}

func TestPostUpdate_UnsetFieldsAbsent(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource":  "post",
		"operation": "update",
		"postId":    "12",
		"content":   "new content",
		"title":     nil,
	}, Item{})
	require.NoError(t, err)

	req := ft.calls[0].req
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "post/12", req.Endpoint)
	assert.Equal(t, map[string]any{"content": "new content"}, req.Body)
}

func TestUpdate_PresenceVersusTruthiness(t *testing.T) {
	t.Run("post update sends empty strings", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{
			"resource": "post", "operation": "update", "postId": 5,
			"title": "", "content": "", "status": "",
		}, Item{})
		require.NoError(t, err)
		assert.Equal(t, "post/5", ft.calls[0].req.Endpoint)
		assert.Equal(t, map[string]any{"title": "", "content": "", "status": ""}, ft.calls[0].req.Body)
	})

	t.Run("user update omits empty strings", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{
			"resource": "user", "operation": "userUpdate", "userId": "9",
			"userEmail": "", "userFirstName": "Ada", "userLastName": "",
			"userNickname": "", "userUrl": "", "userDescription": "", "userRole": "",
		}, Item{})
		require.NoError(t, err)
		assert.Equal(t, "users/9", ft.calls[0].req.Endpoint)
		assert.Equal(t, map[string]any{"first_name": "Ada"}, ft.calls[0].req.Body)
	})

	t.Run("user update role becomes roles list", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{
			"resource": "user", "operation": "userUpdate", "userId": "9", "userRole": "editor",
		}, Item{})
		require.NoError(t, err)
		assert.Equal(t, []string{"editor"}, ft.calls[0].req.Body["roles"])
	})
}

func TestDelete_Force(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		endpoint string
		query    string
	}{
		{"post", Params{"resource": "post", "operation": "delete", "postId": "3"}, "post/3", "force=true"},
		{"custom type", Params{"resource": "book", "operation": "delete", "postId": "3"}, "book/3", "force=true"},
		{"media", Params{"resource": "media", "operation": "mediaDelete", "postId": "8"}, "media/8", "force=true"},
		{"user without reassign", Params{"resource": "user", "operation": "userDelete", "userId": "4"}, "users/4", "force=true"},
		{"user empty reassign", Params{"resource": "user", "operation": "userDelete", "userId": "4", "userReassign": ""}, "users/4", "force=true"},
		{"user with reassign", Params{"resource": "user", "operation": "userDelete", "userId": "4", "userReassign": "1"}, "users/4", "force=true&reassign=1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ft := &fakeTransport{}
			_, err := runOne(t, ft, tc.params, Item{})
			require.NoError(t, err)
			req := ft.calls[0].req
			assert.Equal(t, http.MethodDelete, req.Method)
			assert.Equal(t, tc.endpoint, req.Endpoint)
			assert.Equal(t, tc.query, req.Query.Encode())
			assert.Nil(t, req.Body)
		})
	}
}

func TestRead_QueryFlattening(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		op       string
		endpoint string
	}{
		{"post", "post", "read", "post"},
		{"media", "media", "mediaRead", "media"},
		{"user", "user", "userRead", "users"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ft := &fakeTransport{}
			_, err := runOne(t, ft, Params{
				"resource":  tc.resource,
				"operation": tc.op,
				"limit":     5,
				"options": map[string]any{"qs": map[string]any{
					"categories": []any{"6", "7"},
					"tags":       []any{10.0, 11.0},
					"search":     "hello",
				}},
			}, Item{})
			require.NoError(t, err)

			req := ft.calls[0].req
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, tc.endpoint, req.Endpoint)
			assert.Equal(t, "6,7", req.Query.Get("categories"))
			assert.Equal(t, "10,11", req.Query.Get("tags"))
			assert.Equal(t, "hello", req.Query.Get("search"))
			assert.Equal(t, "5", req.Query.Get("per_page"))
			assert.Equal(t, "view", req.Query.Get("context"))
		})
	}
}

func TestRead_DefaultsAndOverride(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource": "post", "operation": "read",
		"options": map[string]any{"qs": map[string]any{"context": "embed"}},
	}, Item{})
	require.NoError(t, err)
	assert.Equal(t, "10", ft.calls[0].req.Query.Get("per_page"))
	assert.Equal(t, "embed", ft.calls[0].req.Query.Get("context"))
}

func TestMediaUpload_DefaultTitleAndPatch(t *testing.T) {
	ft := &fakeTransport{}
	item := Item{Binary: map[string]*BinaryData{
		"data": {FileName: "a.png", MimeType: "image/png", Data: []byte("PNG")},
	}}
	records, err := runOne(t, ft, Params{
		"resource":     "media",
		"operation":    "mediaUpload",
		"mediaCaption": "A caption",
	}, item)
	require.NoError(t, err)
	require.Len(t, ft.calls, 3)

	up := ft.calls[0].upload
	require.NotNil(t, up)
	assert.Equal(t, "media", up.Endpoint)
	assert.Equal(t, `attachment; filename="a.png"`, up.Headers["Content-Disposition"])
	assert.Equal(t, "image/png", up.Headers["Content-Type"])
	assert.Equal(t, []byte("PNG"), up.Body)

	patch := ft.calls[1].req
	assert.Equal(t, http.MethodPost, patch.Method)
	assert.Equal(t, "media/42", patch.Endpoint)
	assert.Equal(t, map[string]any{"title": "a.png", "caption": "A caption"}, patch.Body)

	refetch := ft.calls[2].req
	assert.Equal(t, http.MethodGet, refetch.Method)
	assert.Equal(t, "media/42", refetch.Endpoint)
	assert.Len(t, records, 1)
}

func TestMediaUpload_NoMetadataNoPatch(t *testing.T) {
	ft := &fakeTransport{}
	item := Item{Binary: map[string]*BinaryData{"data": {FileName: "a.png", Data: []byte("x")}}}
	records, err := runOne(t, ft, Params{"resource": "media", "operation": "mediaUpload"}, item)
	require.NoError(t, err)
	require.Len(t, ft.calls, 1)
	assert.NotContains(t, ft.calls[0].upload.Headers, "Content-Type")
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{"id": 42}, records[0].JSON)
}

func TestMediaUpload_ExplicitTitleAndOptionsBody(t *testing.T) {
	ft := &fakeTransport{}
	item := Item{Binary: map[string]*BinaryData{"file": {Data: []byte("x")}}}
	_, err := runOne(t, ft, Params{
		"resource":           "media",
		"operation":          "mediaUpload",
		"fileBinaryProperty": "file",
		"mediaTitle":         "Cover",
		"options":            map[string]any{"body": map[string]any{"title": "ignored", "post": 7}},
	}, item)
	require.NoError(t, err)
	require.Len(t, ft.calls, 3)
	assert.Equal(t, `attachment; filename="upload.bin"`, ft.calls[0].upload.Headers["Content-Disposition"])
	assert.Equal(t, map[string]any{"title": "Cover", "post": 7}, ft.calls[1].req.Body)
}

func TestMediaUpload_NoIDSkipsPatch(t *testing.T) {
	ft := &fakeTransport{upload: func(BinaryRequest) (any, error) { return map[string]any{"status": "ok"}, nil }}
	item := Item{Binary: map[string]*BinaryData{"data": {FileName: "a.png"}}}
	_, err := runOne(t, ft, Params{"resource": "media", "operation": "mediaUpload", "mediaCaption": "c"}, item)
	require.NoError(t, err)
	assert.Len(t, ft.calls, 1)
}

func TestMediaUpload_MissingBinary(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{"resource": "media", "operation": "mediaUpload"}, Item{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingBinary))
	assert.Contains(t, err.Error(), "'data'")
	assert.Empty(t, ft.calls)
}

func TestMediaUpdate_PresenceRule(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource": "media", "operation": "mediaUpdate", "postId": "8",
		"mediaTitle": "", "mediaAltText": "alt",
		"options": map[string]any{"body": map[string]any{"alt_text": "old", "post": 2}},
	}, Item{})
	require.NoError(t, err)
	assert.Equal(t, "media/8", ft.calls[0].req.Endpoint)
	assert.Equal(t, map[string]any{"title": "", "alt_text": "alt", "post": 2}, ft.calls[0].req.Body)
}

func TestUserCreate_Body(t *testing.T) {
	ft := &fakeTransport{}
	_, err := runOne(t, ft, Params{
		"resource": "user", "operation": "userCreate",
		"userUsername": "ada", "userEmail": "ada@example.com", "userPassword": "pw",
	}, Item{})
	require.NoError(t, err)
	req := ft.calls[0].req
	assert.Equal(t, "users", req.Endpoint)
	assert.Equal(t, map[string]any{
		"username": "ada", "email": "ada@example.com", "password": "pw",
		"first_name": "", "last_name": "", "nickname": "", "url": "", "description": "",
		"roles": []string{"subscriber"},
	}, req.Body)
}

func TestUnsupportedCombination(t *testing.T) {
	tests := []struct {
		resource string
		op       string
	}{
		{"media", "create"},
		{"media", "userRead"},
		{"user", "delete"},
		{"user", "mediaUpload"},
		{"post", "mediaUpload"},
		{"page", "userCreate"},
		{"post", "archive"},
	}
	for _, tc := range tests {
		t.Run(tc.resource+"/"+tc.op, func(t *testing.T) {
			ft := &fakeTransport{}
			_, err := runOne(t, ft, Params{"resource": tc.resource, "operation": tc.op}, Item{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedOperation))
			assert.Contains(t, err.Error(), "'"+tc.op+"'")
			assert.Contains(t, err.Error(), "'"+tc.resource+"'")
			assert.Empty(t, ft.calls, "no network call expected")
		})
	}
}

func TestMissingID(t *testing.T) {
	tests := []Params{
		{"resource": "post", "operation": "update"},
		{"resource": "post", "operation": "delete", "postId": ""},
		{"resource": "media", "operation": "mediaUpdate"},
		{"resource": "media", "operation": "mediaDelete"},
		{"resource": "user", "operation": "userUpdate"},
		{"resource": "user", "operation": "userDelete"},
	}
	for _, p := range tests {
		t.Run(fmt.Sprint(p["resource"], "/", p["operation"]), func(t *testing.T) {
			ft := &fakeTransport{}
			_, err := runOne(t, ft, p, Item{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingField))
			assert.Empty(t, ft.calls)
		})
	}
}

func failSecond(n int, req Request) (any, error) {
	if req.Body["title"] == "two" {
		return nil, &APIError{Method: req.Method, Path: req.Endpoint, StatusCode: 500, Message: "boom", Code: "internal"}
	}
	return map[string]any{"id": n}, nil
}

func threeItems() []Item {
	return []Item{
		{Params: Params{"title": "one"}},
		{Params: Params{"title": "two"}},
		{Params: Params{"title": "three"}},
	}
}

func TestExecute_ContinueOnFail(t *testing.T) {
	ft := &fakeTransport{respond: failSecond}
	d := NewDispatcher(ft, WithLogger(testLogger()))
	records, err := d.Execute(context.Background(), Batch{
		Parameters:     Params{"resource": "post", "operation": "create"},
		Items:          threeItems(),
		ContinueOnFail: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Empty(t, records[0].Error)
	assert.NotEmpty(t, records[1].Error)
	assert.Equal(t, 1, records[1].PairedItem)
	errJSON, ok := records[1].JSON.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errJSON["error"], "boom")
	assert.Empty(t, records[2].Error)
	assert.Equal(t, 2, records[2].PairedItem)
}

func TestExecute_AbortOnFail(t *testing.T) {
	ft := &fakeTransport{respond: failSecond}
	var lines []string
	d := NewDispatcher(ft, WithLogger(testLogger()), WithProgress(func(l string) { lines = append(lines, l) }))
	records, err := d.Execute(context.Background(), Batch{
		Parameters: Params{"resource": "post", "operation": "create"},
		Items:      threeItems(),
	})
	require.Error(t, err)
	assert.Nil(t, records)

	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))

	assert.Len(t, ft.calls, 2, "item 3 must not be processed")
	assert.Len(t, lines, 2)
}

func TestExecute_ArrayResponseExpanded(t *testing.T) {
	ft := &fakeTransport{respond: func(int, Request) (any, error) {
		return []any{map[string]any{"id": 1}, map[string]any{"id": 2}}, nil
	}}
	d := NewDispatcher(ft)
	records, err := d.Execute(context.Background(), Batch{
		Parameters: Params{"resource": "post", "operation": "read"},
		Items:      []Item{{}, {}},
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, 0, records[1].PairedItem)
	assert.Equal(t, 1, records[2].PairedItem)
}

func TestExecute_EmptyResponseProducesNoRecord(t *testing.T) {
	ft := &fakeTransport{respond: func(int, Request) (any, error) { return nil, nil }}
	records, err := runOne(t, ft, Params{"resource": "post", "operation": "delete", "postId": "1"}, Item{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecute_PerItemParametersOverride(t *testing.T) {
	ft := &fakeTransport{}
	d := NewDispatcher(ft)
	_, err := d.Execute(context.Background(), Batch{
		Parameters: Params{"resource": "post", "operation": "read"},
		Items: []Item{
			{},
			{Params: Params{"resource": "user", "operation": "userRead"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, ft.calls, 2)
	assert.Equal(t, "post", ft.calls[0].req.Endpoint)
	assert.Equal(t, "users", ft.calls[1].req.Endpoint)
}

func TestExecute_CancelledContext(t *testing.T) {
	ft := &fakeTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDispatcher(ft).Execute(ctx, Batch{
		Parameters: Params{"resource": "post", "operation": "read"},
		Items:      []Item{{}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, ft.calls)
}

type countingObserver struct{ results map[string]int }

func (c *countingObserver) ObserveItem(_, _, result string) { c.results[result]++ }

func TestExecute_ItemObserver(t *testing.T) {
	obs := &countingObserver{results: map[string]int{}}
	ft := &fakeTransport{respond: failSecond}
	_, err := NewDispatcher(ft, WithItemObserver(obs)).Execute(context.Background(), Batch{
		Parameters:     Params{"resource": "post", "operation": "create"},
		Items:          threeItems(),
		ContinueOnFail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 2, "error": 1}, obs.results)
}

func TestPostPath_SlugVersusRESTBase(t *testing.T) {
	cache := NewOptionCache(0, nil)
	cache.Store("cred", Types{
		"book": {Name: "Books", Slug: "book", RESTBase: "books"},
		"post": {Name: "Posts", Slug: "post", RESTBase: "posts"},
	})

	t.Run("default keeps the slug", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{"resource": "book", "operation": "read"}, Item{},
			WithOptionCache(cache, "cred"))
		require.NoError(t, err)
		assert.Equal(t, "book", ft.calls[0].req.Endpoint)
	})

	t.Run("resolution uses rest_base", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{"resource": "book", "operation": "update", "postId": "3", "title": "x"}, Item{},
			WithOptionCache(cache, "cred"), WithRESTBaseResolution(true))
		require.NoError(t, err)
		assert.Equal(t, "books/3", ft.calls[0].req.Endpoint)
	})

	t.Run("rest_base selector passes through", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{"resource": "books", "operation": "read"}, Item{},
			WithOptionCache(cache, "cred"), WithRESTBaseResolution(true))
		require.NoError(t, err)
		assert.Equal(t, "books", ft.calls[0].req.Endpoint)
	})

	t.Run("unknown slug passes through", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{"resource": "recipe", "operation": "read"}, Item{},
			WithOptionCache(cache, "cred"), WithRESTBaseResolution(true))
		require.NoError(t, err)
		assert.Equal(t, "recipe", ft.calls[0].req.Endpoint)
	})

	t.Run("fallback table before discovery", func(t *testing.T) {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, Params{"resource": "page", "operation": "read"}, Item{},
			WithOptionCache(NewOptionCache(0, nil), "other"), WithRESTBaseResolution(true))
		require.NoError(t, err)
		assert.Equal(t, "pages", ft.calls[0].req.Endpoint)
	})
}

func TestDecodeBatch(t *testing.T) {
	b, err := DecodeBatch(strings.NewReader(`{
		"parameters": {"resource": "post", "operation": "update", "postId": 12345678901234567},
		"items": [{"json": {"a": 1}, "binary": {"data": {"fileName": "a.txt", "data": "aGk="}}}]
	}`), true)
	require.NoError(t, err)
	assert.True(t, b.ContinueOnFail)
	assert.Equal(t, "12345678901234567", b.Parameters.String("postId", ""))
	require.Len(t, b.Items, 1)
	assert.Equal(t, []byte("hi"), b.Items[0].Binary["data"].Data)

	b, err = DecodeBatch(strings.NewReader(`{"continue_on_fail": false}`), true)
	require.NoError(t, err)
	assert.False(t, b.ContinueOnFail)
	assert.Len(t, b.Items, 1)
	assert.NotNil(t, b.Parameters)

	_, err = DecodeBatch(strings.NewReader(`{`), false)
	assert.Error(t, err)
}

func TestResponseID(t *testing.T) {
	tests := []struct {
		id     any
		want   string
		wantOK bool
	}{
		{json.Number("42"), "42", true},
		{42.0, "42", true},
		{"42", "42", true},
		{42, "42", true},
		{int64(42), "42", true},
		{uint32(7), "7", true},
		{0, "0", false},
		{"", "", false},
		{nil, "", false},
	}
	for _, tc := range tests {
		got, ok := responseID(map[string]any{"id": tc.id})
		assert.Equal(t, tc.want, got, "id %#v", tc.id)
		assert.Equal(t, tc.wantOK, ok, "id %#v", tc.id)
	}
	_, ok := responseID([]any{map[string]any{"id": 1}})
	assert.False(t, ok)
}

func TestMediaUpload_Int64IDPatches(t *testing.T) {
	ft := &fakeTransport{upload: func(BinaryRequest) (any, error) { return map[string]any{"id": int64(42)}, nil }}
	item := Item{Binary: map[string]*BinaryData{"data": {FileName: "a.png"}}}
	_, err := runOne(t, ft, Params{"resource": "media", "operation": "mediaUpload", "mediaCaption": "c"}, item)
	require.NoError(t, err)
	require.Len(t, ft.calls, 3)
	assert.Equal(t, map[string]any{"title": "a.png", "caption": "c"}, ft.calls[1].req.Body)
	assert.Equal(t, "media/42", ft.calls[2].req.Endpoint)
}

func TestPostPath_MismatchWarnedOncePerCredential(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cache := NewOptionCache(0, nil)
	cache.Store("cred", Types{"book": {Name: "Books", Slug: "book", RESTBase: "books"}})

	// a dispatcher per request, as the bridge builds them
	for i := 0; i < 3; i++ {
		ft := &fakeTransport{}
		d := NewDispatcher(ft, WithLogger(logger), WithOptionCache(cache, "cred"))
		_, err := d.Execute(context.Background(), Batch{
			Parameters: Params{"resource": "book", "operation": "read"},
			Items:      []Item{{}},
		})
		require.NoError(t, err)
		assert.Equal(t, "book", ft.calls[0].req.Endpoint)
	}

	out := buf.String()
	assert.Contains(t, out, "resource=book")
	assert.Contains(t, out, "rest_base=books")
	assert.Equal(t, 1, strings.Count(out, "rest_base=books"))

	// another credential is flagged on its own
	cache.Store("other", Types{"book": {Slug: "book", RESTBase: "books"}})
	d := NewDispatcher(&fakeTransport{}, WithLogger(logger), WithOptionCache(cache, "other"))
	_, err := d.Execute(context.Background(), Batch{
		Parameters: Params{"resource": "book", "operation": "read"},
		Items:      []Item{{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), "rest_base=books"))
}

func TestIDsArePathEscaped(t *testing.T) {
	tests := []struct {
		params   Params
		endpoint string
	}{
		{Params{"resource": "post", "operation": "update", "postId": "5/../../users/1", "title": "x"}, "post/5%2F..%2F..%2Fusers%2F1"},
		{Params{"resource": "post", "operation": "delete", "postId": "5?x=1"}, "post/5%3Fx=1"},
		{Params{"resource": "media", "operation": "mediaDelete", "postId": "../1"}, "media/..%2F1"},
		{Params{"resource": "user", "operation": "userUpdate", "userId": "1/x", "userEmail": "a@b.c"}, "users/1%2Fx"},
		{Params{"resource": "user", "operation": "userDelete", "userId": "me"}, "users/me"},
	}
	for _, tc := range tests {
		ft := &fakeTransport{}
		_, err := runOne(t, ft, tc.params, Item{})
		require.NoError(t, err)
		assert.Equal(t, tc.endpoint, ft.calls[0].req.Endpoint)
	}
}
