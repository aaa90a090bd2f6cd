package wordpress

import (
	"encoding/json"
	"fmt"
)

// Family groups resources that share operations and path rules.
type Family int

const (
	FamilyPostLike Family = iota
	FamilyMedia
	FamilyUser
)

func (f Family) String() string {
	switch f {
	case FamilyMedia:
		return "media"
	case FamilyUser:
		return "user"
	default:
		return "post-like"
	}
}

// FamilyOf classifies a resource selector. Anything that is not media or
// user is post-like, including custom post type slugs.
func FamilyOf(resource string) Family {
	switch resource {
	case "media":
		return FamilyMedia
	case "user":
		return FamilyUser
	default:
		return FamilyPostLike
	}
}

// OperationName is the operation selector of the node.
type OperationName string

const (
	OpCreate      OperationName = "create"
	OpRead        OperationName = "read"
	OpUpdate      OperationName = "update"
	OpDelete      OperationName = "delete"
	OpMediaUpload OperationName = "mediaUpload"
	OpMediaRead   OperationName = "mediaRead"
	OpMediaUpdate OperationName = "mediaUpdate"
	OpMediaDelete OperationName = "mediaDelete"
	OpUserCreate  OperationName = "userCreate"
	OpUserRead    OperationName = "userRead"
	OpUserUpdate  OperationName = "userUpdate"
	OpUserDelete  OperationName = "userDelete"
)

func (o OperationName) postLike() bool {
	switch o {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Operation is one fully-parsed (family, operation) payload. Each variant
// carries exactly the fields valid for its pair.
type Operation interface {
	Name() OperationName
}

// ACFField is one Advanced Custom Fields key/value pair as entered by the user.
type ACFField struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type PostRead struct {
	Resource string
	Limit    int
	Query    map[string]any // options.qs
}

type PostCreate struct {
	Resource string
	Title    string
	Content  string
	Status   string
	Body     map[string]any // options.body
	ACF      []ACFField
}

// PostUpdate fields are nil when not supplied; supplied empty strings are sent.
type PostUpdate struct {
	Resource string
	ID       string
	Title    *string
	Content  *string
	Status   *string
	Body     map[string]any
	ACF      []ACFField
}

type PostDelete struct {
	Resource string
	ID       string
}

// MediaUpload carries the file plus metadata for the follow-up patch. Title
// has already been defaulted to the file name.
type MediaUpload struct {
	Property    string
	File        *BinaryData
	FileName    string
	Title       string
	Description string
	Caption     string
	AltText     string
	Body        map[string]any
}

type MediaRead struct {
	Limit int
	Query map[string]any
}

// MediaUpdate fields are nil when not supplied.
type MediaUpdate struct {
	ID          string
	Title       *string
	Description *string
	Caption     *string
	AltText     *string
	Body        map[string]any
}

type MediaDelete struct {
	ID string
}

type UserCreate struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Nickname    string
	URL         string
	Description string
	Role        string
	Body        map[string]any
}

type UserRead struct {
	Limit int
	Query map[string]any
}

// UserUpdate fields are sent only when non-empty.
type UserUpdate struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Nickname    string
	URL         string
	Description string
	Role        string
	Body        map[string]any
}

type UserDelete struct {
	ID       string
	Reassign string
}

func (*PostRead) Name() OperationName    { return OpRead }
func (*PostCreate) Name() OperationName  { return OpCreate }
func (*PostUpdate) Name() OperationName  { return OpUpdate }
func (*PostDelete) Name() OperationName  { return OpDelete }
func (*MediaUpload) Name() OperationName { return OpMediaUpload }
func (*MediaRead) Name() OperationName   { return OpMediaRead }
func (*MediaUpdate) Name() OperationName { return OpMediaUpdate }
func (*MediaDelete) Name() OperationName { return OpMediaDelete }
func (*UserCreate) Name() OperationName  { return OpUserCreate }
func (*UserRead) Name() OperationName    { return OpUserRead }
func (*UserUpdate) Name() OperationName  { return OpUserUpdate }
func (*UserDelete) Name() OperationName  { return OpUserDelete }

const (
	defaultLimit          = 10
	defaultStatus         = "draft"
	defaultRole           = "subscriber"
	defaultBinaryProperty = "data"
	defaultFileName       = "upload.bin"
)

// ParseOperation turns the resource and operation selectors plus one item's
// parameters into the matching Operation variant. index is the item position
// used in error messages.
func ParseOperation(resource string, op OperationName, p Params, item *Item, index int) (Operation, error) {
	if resource == "" {
		return nil, fmt.Errorf("%w: resource", ErrMissingField)
	}
	switch FamilyOf(resource) {
	case FamilyMedia:
		return parseMedia(resource, op, p, item, index)
	case FamilyUser:
		return parseUser(resource, op, p)
	default:
		return parsePostLike(resource, op, p)
	}
}

func parsePostLike(resource string, op OperationName, p Params) (Operation, error) {
	switch op {
	case OpRead:
		return &PostRead{Resource: resource, Limit: p.Int("limit", defaultLimit), Query: p.optionsBag("qs")}, nil
	case OpCreate:
		acf, err := acfFields(p)
		if err != nil {
			return nil, err
		}
		return &PostCreate{
			Resource: resource,
			Title:    p.String("title", ""),
			Content:  p.String("content", ""),
			Status:   p.String("status", defaultStatus),
			Body:     p.optionsBag("body"),
			ACF:      acf,
		}, nil
	case OpUpdate:
		id := p.String("postId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: item ID is required for update operation", ErrMissingField)
		}
		acf, err := acfFields(p)
		if err != nil {
			return nil, err
		}
		return &PostUpdate{
			Resource: resource,
			ID:       id,
			Title:    optional(p, "title"),
			Content:  optional(p, "content"),
			Status:   optional(p, "status"),
			Body:     p.optionsBag("body"),
			ACF:      acf,
		}, nil
	case OpDelete:
		id := p.String("postId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: item ID is required for delete operation", ErrMissingField)
		}
		return &PostDelete{Resource: resource, ID: id}, nil
	}
	return nil, fmt.Errorf("%w: operation '%s' not supported for resource '%s'", ErrUnsupportedOperation, op, resource)
}

func parseMedia(resource string, op OperationName, p Params, item *Item, index int) (Operation, error) {
	switch op {
	case OpMediaUpload:
		prop := p.String("fileBinaryProperty", defaultBinaryProperty)
		var file *BinaryData
		if item != nil && item.Binary != nil {
			file = item.Binary[prop]
		}
		if file == nil {
			return nil, fmt.Errorf("%w found in property '%s' for item %d", ErrMissingBinary, prop, index)
		}
		fileName := file.FileName
		if fileName == "" {
			fileName = defaultFileName
		}
		return &MediaUpload{
			Property:    prop,
			File:        file,
			FileName:    fileName,
			Title:       p.String("mediaTitle", fileName),
			Description: p.String("mediaDescription", ""),
			Caption:     p.String("mediaCaption", ""),
			AltText:     p.String("mediaAltText", ""),
			Body:        p.optionsBag("body"),
		}, nil
	case OpMediaRead:
		return &MediaRead{Limit: p.Int("limit", defaultLimit), Query: p.optionsBag("qs")}, nil
	case OpMediaUpdate:
		id := p.String("postId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: media ID is required for update operation", ErrMissingField)
		}
		return &MediaUpdate{
			ID:          id,
			Title:       optional(p, "mediaTitle"),
			Description: optional(p, "mediaDescription"),
			Caption:     optional(p, "mediaCaption"),
			AltText:     optional(p, "mediaAltText"),
			Body:        p.optionsBag("body"),
		}, nil
	case OpMediaDelete:
		id := p.String("postId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: media ID is required for delete operation", ErrMissingField)
		}
		return &MediaDelete{ID: id}, nil
	}
	return nil, unsupported(resource, op, "media")
}

func parseUser(resource string, op OperationName, p Params) (Operation, error) {
	switch op {
	case OpUserCreate:
		return &UserCreate{
			Username:    p.String("userUsername", ""),
			Email:       p.String("userEmail", ""),
			Password:    p.String("userPassword", ""),
			FirstName:   p.String("userFirstName", ""),
			LastName:    p.String("userLastName", ""),
			Nickname:    p.String("userNickname", ""),
			URL:         p.String("userUrl", ""),
			Description: p.String("userDescription", ""),
			Role:        p.String("userRole", defaultRole),
			Body:        p.optionsBag("body"),
		}, nil
	case OpUserRead:
		return &UserRead{Limit: p.Int("limit", defaultLimit), Query: p.optionsBag("qs")}, nil
	case OpUserUpdate:
		id := p.String("userId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: user ID is required for update operation", ErrMissingField)
		}
		return &UserUpdate{
			ID:          id,
			Email:       p.String("userEmail", ""),
			FirstName:   p.String("userFirstName", ""),
			LastName:    p.String("userLastName", ""),
			Nickname:    p.String("userNickname", ""),
			URL:         p.String("userUrl", ""),
			Description: p.String("userDescription", ""),
			Role:        p.String("userRole", ""),
			Body:        p.optionsBag("body"),
		}, nil
	case OpUserDelete:
		id := p.String("userId", "")
		if id == "" {
			return nil, fmt.Errorf("%w: user ID is required for delete operation", ErrMissingField)
		}
		return &UserDelete{ID: id, Reassign: p.String("userReassign", "")}, nil
	}
	return nil, unsupported(resource, op, "user")
}

func unsupported(resource string, op OperationName, family string) error {
	if op.postLike() {
		return fmt.Errorf("%w: operation '%s' is for post-like types and not directly applicable to '%s'; select a %s-specific operation",
			ErrUnsupportedOperation, op, resource, family)
	}
	return fmt.Errorf("%w: operation '%s' not supported for resource '%s'", ErrUnsupportedOperation, op, resource)
}

func optional(p Params, name string) *string {
	v, ok := p.OptionalString(name)
	if !ok {
		return nil
	}
	return &v
}

// acfFields reads the acfFields collection. Both {"values": [...]} (the
// host's collection shape) and a bare list are accepted.
func acfFields(p Params) ([]ACFField, error) {
	raw, ok := p.Lookup("acfFields")
	if !ok {
		return nil, nil
	}
	if m, isMap := raw.(map[string]any); isMap {
		raw = m["values"]
		if raw == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("acfFields: %w", err)
	}
	var fields []ACFField
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("acfFields must be a list of {key, value}: %w", err)
	}
	return fields, nil
}
