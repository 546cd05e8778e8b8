package protocol

// ResourceDescriptor identifies a readable resource. URI is the unique
// registry key.
type ResourceDescriptor struct {
	URI         string                 `json:"uri"`
	Name        string                 `json:"name"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	MIMEType    string                 `json:"mimeType,omitempty"`
	Size        int64                  `json:"size,omitempty"`
	Annotations map[string]interface{} `json:"annotations,omitempty"`
}

// ResourceContent carries the actual payload for one resource. Content is
// mutable server-side; a read issued after an update notification reflects
// the mutated value.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourceTemplate describes a parameterized resource family. Templates are
// enumerable but not individually fetchable.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ListResourcesParams is the (empty) payload of a resources/list request
type ListResourcesParams struct{}

// ListResourcesResult carries all registered resource descriptors
type ListResourcesResult struct {
	Resources []ResourceDescriptor `json:"resources"`
}

// ReadResourceParams names the resource to read
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult carries the resource's current contents
type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// SubscribeResourceParams names the resource to watch for updates
type SubscribeResourceParams struct {
	URI string `json:"uri"`
}

// SubscribeResourceResult is the (empty) payload of a subscribe response
type SubscribeResourceResult struct{}

// ListResourceTemplatesParams is the (empty) payload of a templates/list
// request
type ListResourceTemplatesParams struct{}

// ListResourceTemplatesResult carries all registered templates
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ResourceUpdatedParams announces a content change for a subscribed URI
type ResourceUpdatedParams struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}
