// Package runner executes stored request templates against their target hosts.
//
// Execution happens in two phases. Materialize resolves a stored template and
// an optional variable set into a concrete outbound request; Engine.Execute
// performs the call and appends the outcome to the execution history.
package runner

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/vars"
)

// ErrInvalidURL reports that a template's URL is not a valid request URL after
// variable substitution.
var ErrInvalidURL = errors.New("invalid request URL")

// Methods that carry a request body. For all other methods the stored body is
// ignored at execution time.
var bodyMethods = map[string]bool{
	"POST":  true,
	"PUT":   true,
	"PATCH": true,
}

// MaterializedRequest is a fully resolved outbound request. All placeholders
// have been substituted and query parameters folded into the URL.
type MaterializedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    *string
}

// Materialize resolves a stored template against a variable set. Substitution
// applies to the URL, header values, query parameter values, and the body;
// header and parameter names are used as written. Placeholders without a
// matching variable pass through verbatim.
func Materialize(def *models.RequestDefinition, variables map[string]string) (*MaterializedRequest, error) {
	target := vars.Substitute(def.URL, variables)

	if len(def.QueryParams) > 0 {
		values := url.Values{}
		for name, value := range def.QueryParams {
			values.Set(name, vars.Substitute(value, variables))
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + values.Encode()
	}

	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, target, err)
	}

	mat := &MaterializedRequest{
		Method:  def.Method,
		URL:     target,
		Headers: vars.SubstituteMap(def.Headers, variables),
	}
	if bodyMethods[strings.ToUpper(def.Method)] {
		mat.Body = vars.SubstitutePtr(def.Body, variables)
	}
	return mat, nil
}
