package llm

// DefaultTemperature is the sampling temperature sent to every provider.
const DefaultTemperature = 0.7

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Options is the provider configuration bundle passed into each chat call.
type Options struct {
	UseRemote    bool    `json:"useRemote"`              // Whether remote providers may be called at all
	APIKey       string  `json:"-"`                      // Provider secret, never serialised
	APIBase      string  `json:"apiBase,omitempty"`      // Endpoint override; selects the wire format
	Model        string  `json:"model"`                  // Model identifier
	Temperature  float64 `json:"temperature"`            // Sampling temperature
	SystemPrompt string  `json:"systemPrompt,omitempty"` // Optional instruction prepended to remote requests
}

// Remote reports whether a real provider should be called. Both the remote
// switch and a secret are required; anything else means mock mode.
func (o Options) Remote() bool {
	return o.UseRemote && o.APIKey != ""
}

// ModelOrDefault returns the configured model or DefaultModel.
func (o Options) ModelOrDefault() string {
	if o.Model == "" {
		return DefaultModel
	}
	return o.Model
}

// TemperatureOrDefault returns the configured temperature or DefaultTemperature.
func (o Options) TemperatureOrDefault() float64 {
	if o.Temperature == 0 {
		return DefaultTemperature
	}
	return o.Temperature
}
