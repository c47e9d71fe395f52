package recorder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Expectation is what a response must look like for a step to succeed.
type Expectation struct {
	// Status defaults to 200.
	Status int
	// Marker is a selector that must match at least once.
	Marker string
}

// FormStep is one request of a workflow. It does not change once built.
type FormStep struct {
	Name   string
	Method string
	// Path is relative to the base url or absolute.
	Path   string
	Fields map[string]string
	Expect Expectation
	// RequireTokens fails the step when the response carries no tokens.
	RequireTokens bool
}

func GetStep(name, path string) FormStep {
	return FormStep{Name: name, Method: http.MethodGet, Path: path}
}

func PostStep(name, path string, fields map[string]string) FormStep {
	return FormStep{Name: name, Method: http.MethodPost, Path: path, Fields: fields}
}

// formFields merges tokens into the step's fields. Caller fields win for every
// key except the token names.
func (s FormStep) formFields(tokens TokenSet) map[string]string {
	fields := maps.Clone(s.Fields)
	if fields == nil {
		fields = map[string]string{}
	}
	for name, value := range tokens {
		fields[name] = value
	}
	return fields
}

// Execute runs step on the session and returns the parsed response. Tokens
// found in the response replace the session's tokens. Tokens are only posted,
// fields of a GET step are sent as query parameters.
func (s *Session) Execute(ctx context.Context, step FormStep) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "step:"+step.Name)
	defer span.End()

	method := step.Method
	if method == "" {
		method = http.MethodGet
	}
	span.SetAttributes(
		attribute.String("step", step.Name),
		attribute.String("method", method),
		attribute.String("path", step.Path),
	)

	req := s.http.R().SetContext(ctx)
	switch method {
	case http.MethodPost:
		req.SetFormData(step.formFields(s.tokens))
	default:
		if len(step.Fields) > 0 {
			req.SetQueryParams(step.Fields)
		}
	}

	res, err := req.Execute(method, step.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("step %s: %w", step.Name, err)
	}

	expected := step.Expect.Status
	if expected == 0 {
		expected = http.StatusOK
	}
	if res.StatusCode() != expected {
		err := &StepFailedError{
			Step:   step.Name,
			Status: res.StatusCode(),
			Reason: fmt.Sprintf("expected status %d", expected),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &StepFailedError{Step: step.Name, Status: res.StatusCode(), Reason: err.Error()}
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		doc.Url = res.RawResponse.Request.URL
		s.page = doc.Url
	}

	if step.Expect.Marker != "" && doc.Find(step.Expect.Marker).Length() == 0 {
		err := &StepFailedError{
			Step:   step.Name,
			Status: res.StatusCode(),
			Reason: fmt.Sprintf("marker %q not found", step.Expect.Marker),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "marker not found")
		return nil, err
	}

	tokens, err := ExtractTokens(doc, s.Variant.Tokens)
	switch {
	case err == nil:
		s.tokens = tokens
	case step.RequireTokens:
		span.RecordError(err)
		span.SetStatus(codes.Error, "tokens missing")
		return nil, err
	}

	slog.DebugContext(
		ctx, "form step done",
		"step", step.Name,
		"status", res.StatusCode(),
		"url", s.Page().String(),
		"tokens", len(s.tokens),
	)
	return doc, nil
}
