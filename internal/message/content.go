package message

// Content is one item of a message. The set of implementations is closed:
// Text, Image, ToolRequest and ToolResponse.
type Content interface {
	contentType() string
}

// Text is plain text content.
type Text struct {
	Text string
}

// Image is base64-encoded image data.
type Image struct {
	Data     string
	MimeType string
}

// ToolRequest is a backend asking for a tool call. When the backend produced
// something that could not be read as a call (bad name, malformed
// arguments) Err is set and Call holds whatever could be recovered.
type ToolRequest struct {
	ID   string
	Call ToolCall
	Err  error
}

// ToolResponse carries the output of a tool call back to the backend. Err is
// set when the tool failed; Output is then ignored.
type ToolResponse struct {
	ID     string
	Output []Content
	Err    error
}

func (Text) contentType() string         { return "text" }
func (Image) contentType() string        { return "image" }
func (ToolRequest) contentType() string  { return "tool_request" }
func (ToolResponse) contentType() string { return "tool_response" }

// TypeOf returns the wire-neutral name of a content variant.
func TypeOf(c Content) string {
	if c == nil {
		return ""
	}
	return c.contentType()
}
