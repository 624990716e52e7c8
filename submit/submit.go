// Package submit is navkit's form submission helper (C9): it performs an
// HTTP request on behalf of a form and translates a redirect response
// into a navigation.
package submit

import (
	"context"
	"io"
	"net/http"

	"github.com/navkit-dev/navkit"
)

// Method is the HTTP method a Form is submitted with.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Form describes one submission.
type Form struct {
	Method Method
	Name   string
	Action string
	Body   io.Reader
	Header http.Header
	Info   any
}

// Result pairs the navigation outcome of a submission with the raw HTTP
// response, so callers can inspect status/headers regardless of whether
// a navigation happened.
type Result struct {
	Destination navkit.Destination
	Response    *http.Response
}

// Submitter performs form submissions against engine.
type Submitter struct {
	engine *navkit.Engine
	client *http.Client
}

// New builds a Submitter. A nil client defaults to a client that stops at
// the first redirect response instead of following it, since Submit needs
// to see the raw 3xx itself to translate it into a navigation.
func New(engine *navkit.Engine, client *http.Client) *Submitter {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Submitter{engine: engine, client: client}
}

// Submit issues form's request and, on a 3xx response carrying a Location
// header, performs a replace navigation to it (spec §4.9). Any other
// response leaves navigation state unchanged.
func (s *Submitter) Submit(ctx context.Context, form Form) (Result, error) {
	action := form.Action
	if action == "" {
		action = form.Name
	}

	req, err := http.NewRequestWithContext(ctx, string(form.Method), action, form.Body)
	if err != nil {
		return Result{}, &navkit.FormSubmitError{Method: string(form.Method), Action: action, Err: err}
	}
	for k, vv := range form.Header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, &navkit.FormSubmitError{Method: string(form.Method), Action: action, Err: err}
	}

	if isRedirect(resp.StatusCode) {
		if loc := resp.Header.Get("Location"); loc != "" {
			dest, nerr := s.engine.Navigate(ctx, loc, navkit.WithHistory(navkit.HistoryReplace), navkit.WithInfo(form.Info))
			if nerr != nil {
				return Result{Response: resp}, nerr
			}
			return Result{Destination: dest, Response: resp}, nil
		}
	}

	return Result{Destination: s.engine.CurrentEntry(), Response: resp}, nil
}

func isRedirect(code int) bool { return code >= 300 && code < 400 }
