package wordpress

import (
	"encoding/json"
	"net/url"
	"strings"
)

// readQuery builds the query of every read operation:
// {per_page: limit, context: "view", ...qs}, arrays comma-joined.
func readQuery(limit int, qs map[string]any) url.Values {
	merged := map[string]any{
		"per_page": limit,
		"context":  "view",
	}
	for k, v := range qs {
		merged[k] = v
	}
	return encodeQuery(merged)
}

// encodeQuery flattens a parameter map into url.Values. Array values become a
// single comma-joined value.
func encodeQuery(params map[string]any) url.Values {
	q := make(url.Values, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			parts := make([]string, len(list))
			for i, el := range list {
				parts[i] = stringify(el)
			}
			q.Set(k, strings.Join(parts, ","))
			continue
		}
		if list, ok := v.([]string); ok {
			q.Set(k, strings.Join(list, ","))
			continue
		}
		q.Set(k, stringify(v))
	}
	return q
}

// reduceACF turns the user's key/value list into the acf object. String
// values holding JSON are decoded; anything else is sent as entered.
func reduceACF(fields []ACFField) map[string]any {
	acf := make(map[string]any, len(fields))
	for _, f := range fields {
		s, ok := f.Value.(string)
		if !ok {
			acf[f.Key] = f.Value
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			acf[f.Key] = decoded
		} else {
			acf[f.Key] = s
		}
	}
	return acf
}

func copyBody(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+4)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func postCreateBody(op *PostCreate) map[string]any {
	body := map[string]any{
		"title":   op.Title,
		"content": op.Content,
		"status":  op.Status,
	}
	// options.body wins over the named fields
	for k, v := range op.Body {
		body[k] = v
	}
	if len(op.ACF) > 0 {
		body["acf"] = reduceACF(op.ACF)
	}
	return body
}

func postUpdateBody(op *PostUpdate) map[string]any {
	body := copyBody(op.Body)
	if op.Title != nil {
		body["title"] = *op.Title
	}
	if op.Content != nil {
		body["content"] = *op.Content
	}
	if op.Status != nil {
		body["status"] = *op.Status
	}
	if len(op.ACF) > 0 {
		body["acf"] = reduceACF(op.ACF)
	}
	return body
}

func mediaUpdateBody(op *MediaUpdate) map[string]any {
	body := copyBody(op.Body)
	if op.Title != nil {
		body["title"] = *op.Title
	}
	if op.Description != nil {
		body["description"] = *op.Description
	}
	if op.Caption != nil {
		body["caption"] = *op.Caption
	}
	if op.AltText != nil {
		body["alt_text"] = *op.AltText
	}
	return body
}

// mediaMetadata returns the fields to patch after an upload, or nil when
// nothing differs from what WordPress derives from the file itself. Once a
// patch is needed the effective title (defaulting to the file name) is
// always part of it.
func mediaMetadata(op *MediaUpload) map[string]any {
	meta := map[string]any{}
	if op.Title != "" && op.Title != op.FileName {
		meta["title"] = op.Title
	}
	if op.Description != "" {
		meta["description"] = op.Description
	}
	if op.Caption != "" {
		meta["caption"] = op.Caption
	}
	if op.AltText != "" {
		meta["alt_text"] = op.AltText
	}
	for k, v := range op.Body {
		if _, set := meta[k]; !set {
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	if _, set := meta["title"]; !set && op.Title != "" {
		meta["title"] = op.Title
	}
	return meta
}

func userCreateBody(op *UserCreate) map[string]any {
	body := map[string]any{
		"username":    op.Username,
		"email":       op.Email,
		"password":    op.Password,
		"first_name":  op.FirstName,
		"last_name":   op.LastName,
		"nickname":    op.Nickname,
		"url":         op.URL,
		"description": op.Description,
		"roles":       []string{op.Role},
	}
	for k, v := range op.Body {
		body[k] = v
	}
	return body
}

// userUpdateBody applies the truthiness rule: empty strings are not sent.
func userUpdateBody(op *UserUpdate) map[string]any {
	body := copyBody(op.Body)
	set := func(key, v string) {
		if v != "" {
			body[key] = v
		}
	}
	set("email", op.Email)
	set("first_name", op.FirstName)
	set("last_name", op.LastName)
	set("nickname", op.Nickname)
	set("url", op.URL)
	set("description", op.Description)
	if op.Role != "" {
		body["roles"] = []string{op.Role}
	}
	return body
}
