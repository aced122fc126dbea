package goresource

import "net/http"

// Response is the outcome of a resource operation or a short-circuiting
// request filter. A nil Body means an empty response body.
type Response struct {
	Status int
	Body   any
}

// ErrorBody is the payload of every failed outcome.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// CreatedBody is the payload of a successful create.
type CreatedBody struct {
	Data CreatedData `json:"data"`
}

type CreatedData struct {
	ID Id `json:"id"`
}

func created(id Id) Response {
	return Response{Status: http.StatusCreated, Body: CreatedBody{Data: CreatedData{ID: id}}}
}

func ok(body any) Response {
	return Response{Status: http.StatusOK, Body: body}
}

func noContent() Response {
	return Response{Status: http.StatusNoContent}
}

func notFound() Response {
	return failure(http.StatusNotFound, ErrTargetNotFound.Error(), nil)
}

func failure(status int, msg string, details any) Response {
	return Response{Status: status, Body: ErrorBody{Error: msg, Details: details}}
}

// abort is the short-circuit form of failure used by gates and filters.
func abort(status int, err error) *Response {
	resp := failure(status, err.Error(), nil)
	return &resp
}
