package llm

import (
	"net/http"
	"sync"
)

// ResponseFormat asks the provider for structured JSON output matching a
// JSON schema. Providers without native support ignore it and rely on the
// prompt.
type ResponseFormat struct {
	// Name identifies the schema (e.g. "code_schema").
	Name string

	// Schema is the JSON schema of the expected object.
	Schema map[string]any

	// Strict requests exact schema adherence where supported.
	Strict bool
}

// Provider speaks the wire protocol of one LLM vendor. Implementations are
// stateless; credentials come from the environment.
type Provider interface {
	// Name is the value of model.EndpointConfig.Provider it serves.
	Name() string

	// BuildURL returns the request URL for an endpoint base URL, which may
	// be empty.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and version headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody encodes one request. A nil temperature and a zero
	// maxTokens leave the provider defaults; format may be nil.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int, format *ResponseFormat) ([]byte, error)

	// ParseResponse decodes a successful response body.
	ParseResponse(body []byte, model string) (*Response, error)
}

// providers holds the implementations registered by the providers
// package's init functions.
var providers sync.Map

// RegisterProvider makes p available under p.Name(), replacing any
// provider of that name.
func RegisterProvider(p Provider) {
	providers.Store(p.Name(), p)
}

// LookupProvider returns the provider registered under name.
func LookupProvider(name string) (Provider, bool) {
	v, ok := providers.Load(name)
	if !ok {
		return nil, false
	}
	return v.(Provider), true
}
