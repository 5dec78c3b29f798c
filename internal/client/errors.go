package client

import "fmt"

// ErrorKind classifies why an API access failed
type ErrorKind int

const (
	NoCredentials ErrorKind = iota
	Authentication
	LoadingSubsystem
	InvalidJSON
	UnexpectedlyFormedJSON
	NonHTTPResponse
	OtherHTTP
	ServerHiccups
)

func (k ErrorKind) String() string {
	switch k {
	case NoCredentials:
		return "no_credentials"
	case Authentication:
		return "authentication"
	case LoadingSubsystem:
		return "loading_subsystem"
	case InvalidJSON:
		return "invalid_json"
	case UnexpectedlyFormedJSON:
		return "unexpectedly_formed_json"
	case NonHTTPResponse:
		return "non_http_response"
	case OtherHTTP:
		return "other_http"
	case ServerHiccups:
		return "server_hiccups"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// APIError is returned by every fetch that fails. Err holds the underlying cause
// for transport and decoding failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches any APIError of the same kind, so errors.Is(err, ErrAuthentication) works
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNoCredentials          = &APIError{Kind: NoCredentials, Message: "no credentials configured"}
	ErrAuthentication         = &APIError{Kind: Authentication}
	ErrLoadingSubsystem       = &APIError{Kind: LoadingSubsystem}
	ErrInvalidJSON            = &APIError{Kind: InvalidJSON}
	ErrUnexpectedlyFormedJSON = &APIError{Kind: UnexpectedlyFormedJSON}
	ErrNonHTTPResponse        = &APIError{Kind: NonHTTPResponse}
	ErrOtherHTTP              = &APIError{Kind: OtherHTTP}
	ErrServerHiccups          = &APIError{Kind: ServerHiccups}
)
