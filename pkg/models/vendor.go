package models

// Vendor is the tagged-variant enum selected once at startup (§3, §9).
type Vendor string

const (
	VendorAnthropic  Vendor = "anthropic"
	VendorOpenAI     Vendor = "openai"
	VendorOpenRouter Vendor = "openrouter"
)

// ReplyKind tags the shape of a transport Reply.
type ReplyKind string

const (
	ReplyAssistantText ReplyKind = "assistant_text"
	ReplyToolCall      ReplyKind = "tool_call"
	ReplyError         ReplyKind = "error"
)

// ErrorKind enumerates the transport-level failure categories (§4.E, §7).
type ErrorKind string

const (
	ErrTransport          ErrorKind = "transport"
	ErrAuth               ErrorKind = "auth"
	ErrRateLimitedByVendor ErrorKind = "rate_limited_by_vendor"
	ErrInvalidResponse    ErrorKind = "invalid_response"
	ErrTruncated          ErrorKind = "truncated"
)

// Reply is the vendor-agnostic outcome of one LLM transport call.
type Reply struct {
	Kind ReplyKind

	// ReplyAssistantText
	Text string

	// ReplyToolCall
	ToolCallID   string
	ToolName     string
	ToolArgsJSON string

	// ReplyError
	Err ErrorKind
}
