package goresource

import "net/http"

// Preconditions gates resource operations on the trust markers and shape of
// a request. Each gate returns nil to continue or the response to answer
// with.
type Preconditions struct {
	// SkipTrustChecks disables the trust marker checks. Shape checks still
	// apply. Meant for trusted internal callers and tests.
	SkipTrustChecks bool
}

func (p Preconditions) ForCreate(req *Request) *Response {
	if !p.SkipTrustChecks && !req.BodyValidated() {
		return abort(http.StatusInternalServerError, ErrBodyNotValidated)
	}

	if _, ok := req.BodyObject(); !ok {
		return abort(http.StatusConflict, ErrPayloadInvalid)
	}

	return nil
}

func (p Preconditions) ForSearch(req *Request) *Response {
	if !p.SkipTrustChecks && !req.QueryValidated() {
		return abort(http.StatusInternalServerError, ErrQueryNotValidated)
	}

	if req.Query == nil {
		return abort(http.StatusBadRequest, ErrPayloadInvalid)
	}

	return nil
}

func (p Preconditions) ForUpdate(req *Request) *Response {
	if resp := p.ForCreate(req); resp != nil {
		return resp
	}

	return p.forTarget(req)
}

func (p Preconditions) ForGet(req *Request) *Response {
	return p.forTarget(req)
}

func (p Preconditions) ForRemove(req *Request) *Response {
	return p.forTarget(req)
}

func (p Preconditions) forTarget(req *Request) *Response {
	if req.ID() == "" {
		return abort(http.StatusNotFound, ErrTargetNotFound)
	}

	return nil
}

// isValidQuery reports whether the query may be used to narrow an operation.
func (p Preconditions) isValidQuery(req *Request) bool {
	return (p.SkipTrustChecks || req.QueryValidated()) && req.Query != nil
}

// QueryFilters returns the trusted query filters, or an empty filter when
// the query was not validated.
func (p Preconditions) QueryFilters(req *Request) Filter {
	if !p.isValidQuery(req) {
		return Filter{}
	}

	if f, ok := asFilter(req.Query[QueryKeyFilters]); ok {
		return f
	}

	return Filter{}
}

// QueryFields returns the trusted projection, if any.
func (p Preconditions) QueryFields(req *Request) FieldSet {
	if !p.isValidQuery(req) {
		return nil
	}

	fields, _ := req.Query[QueryKeyFields].(FieldSet)

	return fields
}
