package core

// Envelope is the JSON body of every successful portal response.
// LastUpdated is attached by the conditional cache middleware and is the
// validator a client echoes back as ?timestamp= on its next request.
type Envelope struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data"`
	LastUpdated int64  `json:"lastUpdated,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// OKWithMessage wraps data in a successful envelope carrying a human readable message.
func OKWithMessage(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}
