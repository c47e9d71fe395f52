package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"recorder-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	StepSelectJurisdiction    = "select-jurisdiction"
	StepSelectSubJurisdiction = "select-sub-jurisdiction"
	StepAcceptDisclaimer      = "accept-disclaimer"
	StepSearch                = "search"
)

// Navigator drives a session through the portal's selection, disclaimer and
// search forms. Each step depends on server state left by the one before, so
// the first failure aborts the rest.
type Navigator struct {
	session *Session
}

func NewNavigator(session *Session) Navigator {
	return Navigator{session: session}
}

func abort(step string, err error) error {
	return &WorkflowAbortedError{AtStep: step, Err: err}
}

// Navigate runs every step for criteria and returns the search results page.
// Every error it returns is a *WorkflowAbortedError.
func (n Navigator) Navigate(ctx context.Context, criteria SearchCriteria) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "navigate")
	defer span.End()

	span.SetAttributes(
		attribute.String("jurisdiction", criteria.Jurisdiction),
		attribute.String("sub_jurisdiction", criteria.SubJurisdiction),
		attribute.String("range", criteria.Range.String()),
	)

	fail := func(step string, err error) (*goquery.Document, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow aborted at "+step)
		slog.WarnContext(ctx, "workflow aborted", "step", step, "err", err)
		return nil, abort(step, err)
	}

	v := n.session.Variant

	_, err := n.selectOption(ctx, StepSelectJurisdiction, v.Jurisdiction, criteria.Jurisdiction)
	if err != nil {
		return fail(StepSelectJurisdiction, err)
	}
	_, err = n.selectOption(ctx, StepSelectSubJurisdiction, v.SubJurisdiction, criteria.SubJurisdiction)
	if err != nil {
		return fail(StepSelectSubJurisdiction, err)
	}
	searchPage, err := n.acceptDisclaimer(ctx)
	if err != nil {
		return fail(StepAcceptDisclaimer, err)
	}
	results, err := n.search(ctx, searchPage, criteria)
	if err != nil {
		return fail(StepSearch, err)
	}
	return results, nil
}

// selectOption re-fetches the base page, since the options rendered depend on
// earlier selections, and posts the option matching want.
func (n Navigator) selectOption(ctx context.Context, step string, field SelectField, want string) (Option, error) {
	v := n.session.Variant

	page := GetStep(step+":load", v.BasePath)
	page.RequireTokens = true
	doc, err := n.session.Execute(ctx, page)
	if err != nil {
		return Option{}, err
	}

	opt, err := MatchOption(field.ID, ReadOptions(doc, field), want)
	if err != nil {
		return Option{}, err
	}

	slog.DebugContext(ctx, "selecting option", "step", step, "value", opt.Value, "text", opt.Text)

	fields := map[string]string{field.Name: opt.Value}
	if v.ChangeButton.Name != "" {
		fields[v.ChangeButton.Name] = v.ChangeButton.Value
	}
	_, err = n.session.Execute(ctx, PostStep(step, v.BasePath, fields))
	if err != nil {
		return Option{}, err
	}
	return opt, nil
}

// acceptDisclaimer posts the consent form to wherever its action points and
// returns the search page that follows.
func (n Navigator) acceptDisclaimer(ctx context.Context) (*goquery.Document, error) {
	v := n.session.Variant

	doc, err := n.session.Execute(ctx, GetStep(StepAcceptDisclaimer+":load", v.DisclaimerPath))
	if err != nil {
		return nil, err
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, &StepFailedError{
			Step:   StepAcceptDisclaimer,
			Status: http.StatusOK,
			Reason: "disclaimer page has no form",
		}
	}
	action, _ := htmlutil.Attr(form, "action")
	target, err := htmlutil.Resolve(n.session.Page(), action)
	if err != nil {
		return nil, fmt.Errorf("disclaimer form action %q: %w", action, err)
	}

	fields := map[string]string{}
	if v.DisclaimerAccept.Name != "" {
		fields[v.DisclaimerAccept.Name] = v.DisclaimerAccept.Value
	}
	_, err = n.session.Execute(ctx, PostStep(StepAcceptDisclaimer, target.String(), fields))
	if err != nil {
		return nil, err
	}

	search := GetStep(StepAcceptDisclaimer+":search-page", v.SearchPath)
	search.RequireTokens = true
	return n.session.Execute(ctx, search)
}

// resolveSelectValue maps want onto the option value of field when the page
// renders that select, otherwise want is posted as is.
func resolveSelectValue(doc *goquery.Document, field SelectField, want string) (string, error) {
	options := ReadOptions(doc, field)
	if len(options) == 0 {
		return want, nil
	}
	opt, err := MatchOption(field.ID, options, want)
	if err != nil {
		return "", err
	}
	return opt.Value, nil
}

func (n Navigator) search(ctx context.Context, searchPage *goquery.Document, criteria SearchCriteria) (*goquery.Document, error) {
	s := n.session.Variant.Search

	fields := criteria.Filters()
	if fields == nil {
		fields = map[string]string{}
	}

	docType, err := resolveSelectValue(searchPage, s.DocumentType, criteria.DocumentType)
	if err != nil {
		return nil, err
	}
	fields[s.DocumentType.Name] = docType

	if s.DocumentGroup.Name != "" && criteria.DocumentGroup != "" {
		group, err := resolveSelectValue(searchPage, s.DocumentGroup, criteria.DocumentGroup)
		if err != nil {
			return nil, err
		}
		fields[s.DocumentGroup.Name] = group
	}

	fields[s.DateStart] = criteria.Range.Start.Format(s.DateLayout)
	fields[s.DateEnd] = criteria.Range.End.Format(s.DateLayout)
	if s.Submit.Name != "" {
		fields[s.Submit.Name] = s.Submit.Value
	}

	step := PostStep(StepSearch, n.session.Variant.SearchPath, fields)
	step.Expect.Marker = s.Marker
	return n.session.Execute(ctx, step)
}

// ListOptions returns the jurisdictions the portal offers, or the
// sub-jurisdictions of jurisdiction when it is not empty.
func (n Navigator) ListOptions(ctx context.Context, jurisdiction string) ([]Option, error) {
	ctx, span := tracer.Start(ctx, "listOptions")
	defer span.End()

	v := n.session.Variant
	field := v.Jurisdiction
	step := StepSelectJurisdiction

	if jurisdiction != "" {
		_, err := n.selectOption(ctx, StepSelectJurisdiction, v.Jurisdiction, jurisdiction)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to select jurisdiction")
			return nil, abort(StepSelectJurisdiction, err)
		}
		field = v.SubJurisdiction
		step = StepSelectSubJurisdiction
	}

	page := GetStep(step+":load", v.BasePath)
	page.RequireTokens = true
	doc, err := n.session.Execute(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load options")
		return nil, abort(step, err)
	}
	return ReadOptions(doc, field), nil
}
