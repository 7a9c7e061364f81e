package api

// EnvelopeMetadata carries per-request correlation and timing information.
type EnvelopeMetadata struct {
	// RequestID is the request correlation id, echoed from the inbound
	// X-Request-ID header or generated by the gateway.
	RequestID string `json:"request_id,omitempty"`

	// ProcessingTimeMS is the elapsed gateway processing time.
	ProcessingTimeMS int64 `json:"processing_time_ms"`

	// Warnings carries soft degradation notices, such as a stale batch
	// snapshot served after a failed refresh. Never set on failures.
	Warnings []string `json:"warnings,omitempty"`
}

// ResponseEnvelope is the uniform response wrapper for unary and batch
// operations. Exactly one of Data and Error is populated: Data on success,
// Error on failure. Both keys are always present on the wire so clients can
// branch on success without probing for missing fields.
type ResponseEnvelope struct {
	// Success reports whether the operation succeeded.
	Success bool `json:"success"`

	// Data is the operation payload. Null on failure.
	Data any `json:"data"`

	// Error is the classified failure. Null on success.
	Error *ErrorDetail `json:"error"`

	// Metadata is correlation and timing info, present on every response.
	Metadata *EnvelopeMetadata `json:"metadata,omitempty"`
}

// NewSuccessEnvelope wraps an operation payload.
func NewSuccessEnvelope(data any, meta *EnvelopeMetadata) *ResponseEnvelope {
	return &ResponseEnvelope{Success: true, Data: data, Metadata: meta}
}

// NewErrorEnvelope wraps a failure, classifying err through the taxonomy.
// Unclassified errors surface as internal_error.
func NewErrorEnvelope(err error, meta *EnvelopeMetadata) *ResponseEnvelope {
	return &ResponseEnvelope{Success: false, Error: AsError(err).Detail(), Metadata: meta}
}
