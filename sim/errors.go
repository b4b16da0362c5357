package sim

// ErrorKind is the machine-readable error class sent to clients.
type ErrorKind string

const (
	KindDecode      ErrorKind = "decode_error"
	KindIntegration ErrorKind = "integration_error"
)

// DecodeError reports a request payload that is not valid JSON, has missing
// or mistyped fields, or carries out-of-range values.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode request: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind returns KindDecode.
func (e *DecodeError) Kind() ErrorKind {
	return KindDecode
}

// IntegrationError reports that the integrator could not reach the end time.
// Err is usually an *ode.Error.
type IntegrationError struct {
	Err error
}

func (e *IntegrationError) Error() string {
	return "integrate: " + e.Err.Error()
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// Kind returns KindIntegration.
func (e *IntegrationError) Kind() ErrorKind {
	return KindIntegration
}
