package wordpress

// PropertyOption is one choice of an options-typed property.
type PropertyOption struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
}

// Property is one field shown in the host's settings UI. Show maps another
// property's name to the values for which this one is visible.
type Property struct {
	Name              string              `json:"name"`
	DisplayName       string              `json:"displayName"`
	Type              string              `json:"type"`
	Default           any                 `json:"default"`
	Required          bool                `json:"required,omitempty"`
	Password          bool                `json:"password,omitempty"`
	Placeholder       string              `json:"placeholder,omitempty"`
	Description       string              `json:"description,omitempty"`
	Options           []PropertyOption    `json:"options,omitempty"`
	Fields            []Property          `json:"fields,omitempty"` // collection members
	LoadOptionsMethod string              `json:"loadOptionsMethod,omitempty"`
	Show              map[string][]string `json:"show,omitempty"`
}

// VisibleFor evaluates the Show rules against the current field values. A
// property without rules is always visible.
func (p Property) VisibleFor(values map[string]string) bool {
	for field, allowed := range p.Show {
		v := values[field]
		match := false
		for _, a := range allowed {
			if a == v {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// Descriptor is the static description of a credential type or node.
type Descriptor struct {
	Name             string     `json:"name"`
	DisplayName      string     `json:"displayName"`
	Description      string     `json:"description,omitempty"`
	DocumentationURL string     `json:"documentationUrl,omitempty"`
	Credentials      []string   `json:"credentials,omitempty"`
	Properties       []Property `json:"properties"`
}

// CredentialTypeName is the name the node refers to its credential by.
const CredentialTypeName = "wordPressApi"

// CredentialDescriptor describes how a user supplies a site and its auth mode.
func CredentialDescriptor() Descriptor {
	return Descriptor{
		Name:             CredentialTypeName,
		DisplayName:      "WordPress API",
		DocumentationURL: "https://developer.wordpress.org/rest-api/authentication/",
		Properties: []Property{
			{
				Name: "baseUrl", DisplayName: "WordPress Base URL", Type: "string", Default: "",
				Required: true, Placeholder: "https://example.com",
				Description: "The base URL of your WordPress installation (e.g., https://yourdomain.com)",
			},
			{
				Name: "authentication", DisplayName: "Authentication", Type: "options", Default: "basicAuth",
				Description: "Authentication method to use",
				Options: []PropertyOption{
					{Name: "Basic Auth", Value: "basicAuth"},
					{Name: "OAuth2", Value: "oauth2"},
					{Name: "Application Password", Value: "applicationPassword"},
				},
			},
			{
				Name: "username", DisplayName: "Username", Type: "string", Default: "", Required: true,
				Show: map[string][]string{"authentication": {"basicAuth", "applicationPassword"}},
			},
			{
				// with application passwords this holds the generated password
				Name: "password", DisplayName: "Password", Type: "string", Default: "", Required: true, Password: true,
				Show: map[string][]string{"authentication": {"basicAuth", "applicationPassword"}},
			},
			{
				Name: "clientId", DisplayName: "Client ID", Type: "string", Default: "",
				Show: map[string][]string{"authentication": {"oauth2"}},
			},
			{
				Name: "clientSecret", DisplayName: "Client Secret", Type: "string", Default: "", Password: true,
				Show: map[string][]string{"authentication": {"oauth2"}},
			},
		},
	}
}

var (
	postOps        = []string{string(OpCreate), string(OpUpdate)}
	mediaMetaOps   = []string{string(OpMediaUpload), string(OpMediaUpdate)}
	userProfileOps = []string{string(OpUserCreate), string(OpUserUpdate)}
)

func userField(name, display string, required bool, ops []string) Property {
	return Property{
		Name: name, DisplayName: display, Type: "string", Default: "", Required: required,
		Show: map[string][]string{"resource": {"user"}, "operation": ops},
	}
}

func mediaField(name, display, desc string) Property {
	return Property{
		Name: name, DisplayName: display, Type: "string", Default: "", Description: desc,
		Show: map[string][]string{"resource": {"media"}, "operation": mediaMetaOps},
	}
}

// NodeDescriptor describes the node's fields and when each is shown.
func NodeDescriptor() Descriptor {
	props := []Property{
		{
			Name: "resource", DisplayName: "Resource", Type: "options", Default: "post", Required: true,
			LoadOptionsMethod: "getResourceOptions",
		},
		{
			Name: "operation", DisplayName: "Operation", Type: "options", Default: string(OpCreate),
			Options: []PropertyOption{
				{Name: "Create", Value: OpCreate, Action: "Create a post or CPT item"},
				{Name: "Read", Value: OpRead, Action: "Read posts or CPT items"},
				{Name: "Update", Value: OpUpdate, Action: "Update a post or CPT item"},
				{Name: "Delete", Value: OpDelete, Action: "Delete a post or CPT item"},
				{Name: "Upload Media", Value: OpMediaUpload, Action: "Upload a media file"},
				{Name: "Read Media", Value: OpMediaRead, Action: "Read media items"},
				{Name: "Update Media", Value: OpMediaUpdate, Action: "Update media item metadata"},
				{Name: "Delete Media", Value: OpMediaDelete, Action: "Delete a media item"},
				{Name: "Create User", Value: OpUserCreate, Action: "Create a user"},
				{Name: "Read Users", Value: OpUserRead, Action: "Read users"},
				{Name: "Update User", Value: OpUserUpdate, Action: "Update a user"},
				{Name: "Delete User", Value: OpUserDelete, Action: "Delete a user"},
			},
		},
		{
			Name: "title", DisplayName: "Title", Type: "string", Default: "", Required: true,
			Description: "Title of the post/CPT item",
			Show:        map[string][]string{"operation": postOps},
		},
		{
			Name: "content", DisplayName: "Content", Type: "string", Default: "",
			Description: "Content of the post/CPT item",
			Show:        map[string][]string{"operation": postOps},
		},
		{
			Name: "status", DisplayName: "Status", Type: "options", Default: defaultStatus,
			Description: "Status of the post/CPT item",
			Options: []PropertyOption{
				{Name: "Draft", Value: "draft"}, {Name: "Publish", Value: "publish"},
				{Name: "Pending", Value: "pending"}, {Name: "Private", Value: "private"},
			},
			Show: map[string][]string{"operation": postOps},
		},
		{
			Name: "postId", DisplayName: "Post ID", Type: "string", Default: "", Required: true,
			Description: "ID of the item to update or delete",
			Show: map[string][]string{"operation": {
				string(OpUpdate), string(OpDelete), string(OpMediaUpdate), string(OpMediaDelete),
			}},
		},
		{
			Name: "limit", DisplayName: "Limit", Type: "number", Default: defaultLimit,
			Description: "Max number of results to return",
			Show:        map[string][]string{"operation": {string(OpRead), string(OpMediaRead), string(OpUserRead)}},
		},
		{
			Name: "fileBinaryProperty", DisplayName: "File Binary Property", Type: "string",
			Default: defaultBinaryProperty, Required: true,
			Description: "Name of the binary property that contains the file data to upload.",
			Show:        map[string][]string{"resource": {"media"}, "operation": {string(OpMediaUpload)}},
		},
		mediaField("mediaTitle", "Media Title", "Title for the media item."),
		mediaField("mediaDescription", "Media Description", "Description for the media item."),
		mediaField("mediaCaption", "Media Caption", "Caption for the media item."),
		mediaField("mediaAltText", "Media Alt Text", "Alternative text for the media item (for accessibility)."),
		{
			Name: "options", DisplayName: "Options", Type: "collection", Default: map[string]any{},
			Description: "Additional query parameters (reads) or body fields (writes)",
			Show: map[string][]string{"operation": {
				string(OpCreate), string(OpRead), string(OpUpdate),
				string(OpMediaUpload), string(OpMediaRead), string(OpMediaUpdate),
				string(OpUserCreate), string(OpUserRead), string(OpUserUpdate),
			}},
			Fields: []Property{
				{Name: "qs", DisplayName: "Query Parameters", Type: "json", Default: map[string]any{},
					Description: "Extra query parameters for reads, e.g. {\"categories\": [6, 7], \"orderby\": \"title\"}. Arrays are sent comma-joined."},
				{Name: "body", DisplayName: "Body Fields", Type: "json", Default: map[string]any{},
					Description: "Extra fields merged into the request body of writes."},
			},
		},
		userField("userUsername", "Username (Login)", true, []string{string(OpUserCreate)}),
		userField("userEmail", "Email", true, userProfileOps),
		func() Property {
			p := userField("userPassword", "Password", true, []string{string(OpUserCreate)})
			p.Password = true
			return p
		}(),
		userField("userFirstName", "First Name", false, userProfileOps),
		userField("userLastName", "Last Name", false, userProfileOps),
		userField("userUrl", "Website", false, userProfileOps),
		userField("userNickname", "Nickname", false, userProfileOps),
		userField("userDescription", "Biographical Info", false, userProfileOps),
		{
			Name: "userRole", DisplayName: "Role", Type: "options", Default: defaultRole,
			Options: []PropertyOption{
				{Name: "Subscriber", Value: "subscriber"}, {Name: "Contributor", Value: "contributor"},
				{Name: "Author", Value: "author"}, {Name: "Editor", Value: "editor"},
				{Name: "Administrator", Value: "administrator"},
			},
			Show: map[string][]string{"resource": {"user"}, "operation": userProfileOps},
		},
		userField("userId", "User ID", true, []string{string(OpUserUpdate), string(OpUserDelete)}),
		userField("userReassign", "Reassign Posts To (User ID)", false, []string{string(OpUserDelete)}),
		{
			Name: "acfFields", DisplayName: "ACF Fields", Type: "fixedCollection", Default: map[string]any{},
			Description: "Advanced Custom Fields to set for the item.",
			Show:        map[string][]string{"operation": postOps},
			Fields: []Property{
				{Name: "key", DisplayName: "Field Name (Key)", Type: "options", Default: "",
					LoadOptionsMethod: "getAcfFieldKeys",
					Description:       "Name of the ACF field (its key/slug). Select or type."},
				{Name: "value", DisplayName: "Field Value", Type: "string", Default: "",
					Description: "Value for the ACF field. For complex fields (arrays, objects), use JSON string."},
			},
		},
	}
	return Descriptor{
		Name:        "wordPressEnhanced",
		DisplayName: "WordPress Enhanced",
		Description: "Interact with WordPress API with enhanced capabilities",
		Credentials: []string{CredentialTypeName},
		Properties:  props,
	}
}
