package runtime

import (
	"errors"
	"reflect"
)

// ErrorDocument is the wire shape posted to the control plane's error
// endpoint.
type ErrorDocument struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// newErrorDocument derives the wire document from any error. The message is
// the error's own text, degrading to "Unknown error" when empty. The type is
// the Go type name of the root cause with pointer indirection stripped, so a
// plain errors.New value reports as "errorString" and a json.SyntaxError as
// "SyntaxError".
func newErrorDocument(err error) ErrorDocument {
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return ErrorDocument{ErrorMessage: msg, ErrorType: errorKind(err)}
}

func errorKind(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
