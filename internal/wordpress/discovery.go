package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TypeInfo is one entry of the wp/v2/types listing.
type TypeInfo struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	RESTBase string `json:"rest_base"`
}

// Types maps a type key to its description, as returned by GET types.
type Types map[string]TypeInfo

// FallbackTypes is served for a site until its types listing has been
// fetched successfully, so the resource dropdown is never empty.
func FallbackTypes() Types {
	return Types{
		"post":   {Name: "Posts", Slug: "post", RESTBase: "posts"},
		"page":   {Name: "Pages", Slug: "page", RESTBase: "pages"},
		"media":  {Name: "Media", Slug: "attachment", RESTBase: "media"},
		"my_cpt": {Name: "My CPTs", Slug: "my_cpt", RESTBase: "my_cpts"},
	}
}

// Option is one entry of a dynamic dropdown.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BaseResourceOptions are always offered, ahead of any discovered type.
func BaseResourceOptions() []Option {
	return []Option{
		{Name: "Post", Value: "post"},
		{Name: "Media", Value: "media"},
		{Name: "User", Value: "user"},
		{Name: "Page", Value: "page"},
	}
}

// OptionCache holds the discovered types per credential. A credential with no
// fresh entry sees the fallback table.
type OptionCache struct {
	cache    *ttlcache.Cache[string, Types]
	fallback Types

	warned sync.Map // credential + "/" + slug -> struct{}
}

// NewOptionCache creates a cache whose entries live for ttl. A nil fallback
// uses FallbackTypes.
func NewOptionCache(ttl time.Duration, fallback Types) *OptionCache {
	if fallback == nil {
		fallback = FallbackTypes()
	}
	return &OptionCache{
		cache: ttlcache.New[string, Types](
			ttlcache.WithTTL[string, Types](ttl),
			ttlcache.WithDisableTouchOnHit[string, Types](),
		),
		fallback: fallback,
	}
}

// Types returns the cached types for a credential, or the fallback table.
func (c *OptionCache) Types(credentialID string) Types {
	if item := c.cache.Get(credentialID); item != nil {
		return item.Value()
	}
	return c.fallback
}

// Fresh reports whether a discovered entry is cached for the credential.
func (c *OptionCache) Fresh(credentialID string) bool {
	return c.cache.Has(credentialID)
}

// Store records a successful discovery.
func (c *OptionCache) Store(credentialID string, types Types) {
	c.cache.Set(credentialID, types, ttlcache.DefaultTTL)
}

// Invalidate drops the entry for a credential, e.g. after it was edited.
func (c *OptionCache) Invalidate(credentialID string) {
	c.cache.Delete(credentialID)
}

// Refresh calls GET types and stores the result. On failure the current
// entry (or the fallback) is returned together with the error.
func (c *OptionCache) Refresh(ctx context.Context, credentialID string, t Transport) (Types, error) {
	resp, err := t.Request(ctx, Request{Method: http.MethodGet, Endpoint: "types"})
	if err != nil {
		return c.Types(credentialID), err
	}
	types, err := decodeTypes(resp)
	if err != nil {
		return c.Types(credentialID), err
	}
	c.Store(credentialID, types)
	return types, nil
}

// RESTBase returns the rest_base of the type whose slug (or key) is resource,
// when it is known and not empty.
func (c *OptionCache) RESTBase(credentialID, resource string) (string, bool) {
	types := c.Types(credentialID)
	if info, ok := types[resource]; ok && info.RESTBase != "" {
		return info.RESTBase, true
	}
	for _, info := range types {
		if info.Slug == resource && info.RESTBase != "" {
			return info.RESTBase, true
		}
	}
	return "", false
}

// firstMismatch reports whether the slug/rest_base mismatch of resource has
// not been flagged yet for this credential, and marks it as flagged.
func (c *OptionCache) firstMismatch(credentialID, resource string) bool {
	_, seen := c.warned.LoadOrStore(credentialID+"/"+resource, struct{}{})
	return !seen
}

// ResourceOptions lists the resource dropdown for a credential: the base
// options followed by every discovered type valued by rest_base (or slug),
// without duplicates. Discovery runs when no fresh entry is cached; its
// failure is not an error.
func (c *OptionCache) ResourceOptions(ctx context.Context, credentialID string, t Transport) []Option {
	options := BaseResourceOptions()
	if t == nil {
		return options
	}
	types := c.Types(credentialID)
	if !c.Fresh(credentialID) {
		types, _ = c.Refresh(ctx, credentialID, t)
	}

	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(options)+len(keys))
	for _, o := range options {
		seen[o.Value] = true
	}
	for _, k := range keys {
		info := types[k]
		value := info.RESTBase
		if value == "" {
			value = info.Slug
		}
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		options = append(options, Option{Name: info.Name, Value: value})
	}
	return options
}

func decodeTypes(resp any) (Types, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding types: %w", err)
	}
	var types Types
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("parsing types: %w", err)
	}
	return types, nil
}

// ACFFieldKeys returns the ACF field key suggestions for a resource. No
// lookup is performed; the list only keeps the key dropdown populated.
func ACFFieldKeys(resource string) []Option {
	if resource == "" || FamilyOf(resource) != FamilyPostLike {
		return []Option{{Name: "N/A for this resource or no resource selected", Value: ""}}
	}
	if resource == "post" || resource == "posts" {
		return []Option{
			{Name: "Text Field (text_field)", Value: "text_field"},
			{Name: "Image Field (image_field)", Value: "image_field"},
			{Name: "Repeater Field (repeater_field)", Value: "repeater_field"},
		}
	}
	return []Option{
		{Name: fmt.Sprintf("(ACF Fields for %s - dynamic)", resource), Value: ""},
		{Name: "Example Custom Field 1 (example_field_1)", Value: "example_field_1"},
		{Name: "Example Custom Field 2 (example_field_2)", Value: "example_field_2"},
	}
}
