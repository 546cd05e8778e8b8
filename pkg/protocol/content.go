package protocol

// Content block types
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// ContentBlock is a tagged union over text and binary payloads. Only one of
// Text or Data is populated for a given block.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// TextContent builds a text content block
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// BinaryContent builds a block carrying base64 data with a MIME type
func BinaryContent(contentType, data, mimeType string) ContentBlock {
	return ContentBlock{Type: contentType, Data: data, MIMEType: mimeType}
}
