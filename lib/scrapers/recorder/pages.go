package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"recorder-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PageAsset is one scanned page of a document, numbered from 1.
type PageAsset struct {
	DocumentID  string
	Page        int
	Content     []byte
	ContentType string
}

var errNotImage = errors.New("response is not an image")
var errNoImageElement = errors.New("image page has no image element")

// Walker downloads the page images of documents through the session that
// produced their viewer links.
type Walker struct {
	session *Session
}

func NewWalker(session *Session) Walker {
	return Walker{session: session}
}

// Pages yields the images of one document in page order. Documents without a
// view image control yield nothing. Problems are passed to report and the
// walk continues where it can, a failed page is skipped but never reordered.
func (w Walker) Pages(ctx context.Context, documentID, viewerLink string, report ReportFunc) iter.Seq[PageAsset] {
	return func(yield func(PageAsset) bool) {
		ctx, span := tracer.Start(ctx, "pages")
		defer span.End()
		span.SetAttributes(attribute.String("document_id", documentID))

		reportErr := func(err error) {
			span.RecordError(err)
			slog.WarnContext(ctx, "page walk", "document_id", documentID, "err", err)
			report.report(err)
		}

		viewer, err := w.session.Execute(ctx, GetStep("viewer", viewerLink))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reportErr(&PageCountUnknownError{DocumentID: documentID, Err: err})
			return
		}

		layout := w.session.Variant.Viewer
		control := viewer.Find(layout.ViewImage).First()
		if control.Length() == 0 {
			slog.DebugContext(ctx, "document has no image", "document_id", documentID)
			return
		}

		count, raw, ok := readPageCount(viewer.Find(layout.PageCount).First())
		if !ok {
			span.SetStatus(codes.Error, "page count unknown")
			reportErr(&PageCountUnknownError{DocumentID: documentID, Raw: raw})
			return
		}
		span.SetAttributes(attribute.Int("page_count", count))

		switch w.session.Variant.Paging {
		case PagingPostback:
			w.walkPostback(ctx, documentID, count, control, yield, reportErr)
		default:
			w.walkQuery(ctx, documentID, viewerLink, count, yield, reportErr)
		}
	}
}

var pageCountSuffix = regexp.MustCompile(`(?i)\bof\s+(\d+)\s*$`)

// readPageCount reads an input's value or an element's text, either a bare
// number or "page x of n".
func readPageCount(sel *goquery.Selection) (int, string, bool) {
	if sel.Length() == 0 {
		return 0, "", false
	}
	raw := htmlutil.Text(sel)
	if goquery.NodeName(sel) == "input" {
		raw, _ = htmlutil.Attr(sel, "value")
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		groups := pageCountSuffix.FindStringSubmatch(raw)
		if len(groups) < 2 {
			return 0, raw, false
		}
		n, err = strconv.Atoi(groups[1])
		if err != nil {
			return 0, raw, false
		}
	}
	if n < 1 {
		return 0, raw, false
	}
	return n, raw, true
}

// pageUrl is the per page resource: the image path carrying the viewer
// link's query with the page parameter set.
func (w Walker) pageUrl(viewerLink string, page int) (string, error) {
	layout := w.session.Variant.Viewer
	viewer, err := htmlutil.Resolve(w.session.BaseUrl, viewerLink)
	if err != nil {
		return "", err
	}
	target, err := htmlutil.Resolve(viewer, layout.ImagePath)
	if err != nil {
		return "", err
	}
	query := viewer.Query()
	query.Set(layout.PageParam, strconv.Itoa(page))
	target.RawQuery = query.Encode()
	return target.String(), nil
}

func (w Walker) walkQuery(
	ctx context.Context,
	documentID, viewerLink string,
	count int,
	yield func(PageAsset) bool,
	reportErr func(error),
) {
	for page := 1; page <= count; page++ {
		if ctx.Err() != nil {
			return
		}
		target, err := w.pageUrl(viewerLink, page)
		if err != nil {
			reportErr(&PageFetchFailedError{DocumentID: documentID, Page: page, Err: err})
			continue
		}
		asset, err := w.fetchPage(ctx, documentID, page, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reportErr(err)
			continue
		}
		if !yield(asset) {
			return
		}
	}
}

// fetchPage gets one page resource. An html response is taken to be an image
// page and its image element is followed.
func (w Walker) fetchPage(ctx context.Context, documentID string, page int, target string) (PageAsset, error) {
	fail := func(err error) (PageAsset, error) {
		return PageAsset{}, &PageFetchFailedError{DocumentID: documentID, Page: page, Err: err}
	}

	res, err := w.session.Fetch(ctx, target)
	if err != nil {
		return fail(err)
	}
	if res.StatusCode() != http.StatusOK {
		return fail(fmt.Errorf("%s: status %d", target, res.StatusCode()))
	}
	if isImage(res) {
		return newAsset(documentID, page, res), nil
	}
	if mediaType(res) != "text/html" {
		return fail(fmt.Errorf("%s: %w (%s)", target, errNotImage, res.Header().Get("Content-Type")))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fail(err)
	}
	return w.fetchImage(ctx, documentID, page, doc, res.RawResponse.Request.URL)
}

// fetchImage downloads the binary an image page points at.
func (w Walker) fetchImage(ctx context.Context, documentID string, page int, doc *goquery.Document, pageUrl *url.URL) (PageAsset, error) {
	fail := func(err error) (PageAsset, error) {
		return PageAsset{}, &PageFetchFailedError{DocumentID: documentID, Page: page, Err: err}
	}

	src, ok := htmlutil.Attr(doc.Find(w.session.Variant.Viewer.Image), "src")
	if !ok || src == "" {
		return fail(errNoImageElement)
	}
	link, err := htmlutil.Resolve(pageUrl, src)
	if err != nil {
		return fail(err)
	}

	res, err := w.session.Fetch(ctx, link.String())
	if err != nil {
		return fail(err)
	}
	if res.StatusCode() != http.StatusOK {
		return fail(fmt.Errorf("%s: status %d", link, res.StatusCode()))
	}
	if !isImage(res) {
		return fail(fmt.Errorf("%s: %w (%s)", link, errNotImage, res.Header().Get("Content-Type")))
	}
	return newAsset(documentID, page, res), nil
}

func (w Walker) walkPostback(
	ctx context.Context,
	documentID string,
	count int,
	control *goquery.Selection,
	yield func(PageAsset) bool,
	reportErr func(error),
) {
	layout := w.session.Variant.Viewer

	current, err := w.openImagePage(ctx, control)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		reportErr(&PageFetchFailedError{DocumentID: documentID, Page: 1, Err: err})
		return
	}

	for page := 1; ; page++ {
		asset, err := w.fetchImage(ctx, documentID, page, current, w.session.Page())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reportErr(err)
		} else if !yield(asset) {
			return
		}

		if page >= count {
			return
		}
		next := current.Find(layout.Next).First()
		if next.Length() == 0 || isDisabled(next) {
			reportErr(&PaginationTruncatedError{DocumentID: documentID, LastPage: page, Declared: count})
			return
		}

		target := formTarget(current.Selection, w.session.Page())
		current, err = w.session.Execute(ctx, PostStep("next-page", target, map[string]string{
			layout.NextButton.Name: layout.NextButton.Value,
		}))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reportErr(&PageFetchFailedError{DocumentID: documentID, Page: page + 1, Err: err})
			return
		}
	}
}

// openImagePage activates the view image control of the viewer page, a
// submit input is posted back and a link is followed.
func (w Walker) openImagePage(ctx context.Context, control *goquery.Selection) (*goquery.Document, error) {
	viewerUrl := w.session.Page()

	if name, ok := htmlutil.Attr(control, "name"); ok && name != "" {
		value, _ := htmlutil.Attr(control, "value")
		target := formTarget(control.Closest("form"), viewerUrl)
		return w.session.Execute(ctx, PostStep("view-image", target, map[string]string{name: value}))
	}

	anchor, ok := htmlutil.GetAnchor(control)
	if !ok {
		return nil, errors.New("view image control is neither a button nor a link")
	}
	link, err := htmlutil.Resolve(viewerUrl, anchor.Href)
	if err != nil {
		return nil, err
	}
	return w.session.Execute(ctx, GetStep("view-image", link.String()))
}

// formTarget is where the first form in sel posts to, the page itself when
// the action is empty.
func formTarget(sel *goquery.Selection, page *url.URL) string {
	form := sel.Find("form").AddBackFiltered("form").First()
	action, _ := htmlutil.Attr(form, "action")
	if action == "" {
		return page.String()
	}
	target, err := htmlutil.Resolve(page, action)
	if err != nil {
		return page.String()
	}
	return target.String()
}

// isDisabled covers the html attribute and the class asp.net renders on
// disabled controls.
func isDisabled(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("disabled"); ok {
		return true
	}
	return sel.HasClass("aspNetDisabled")
}

func mediaType(res *resty.Response) string {
	header := res.Header().Get("Content-Type")
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func isImage(res *resty.Response) bool {
	return strings.HasPrefix(mediaType(res), "image/")
}

func newAsset(documentID string, page int, res *resty.Response) PageAsset {
	return PageAsset{
		DocumentID:  documentID,
		Page:        page,
		Content:     res.Body(),
		ContentType: mediaType(res),
	}
}
