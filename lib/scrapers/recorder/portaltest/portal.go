// Package portaltest serves a fake county recorder portal over httptest. It
// renders the same server control names as the live portal, checks that every
// postback echoes the view state it last issued and counts every hit.
package portaltest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	controlPrefix = "ctl00$ctl00$MainContent$searchMainContent$"
	idPrefix      = "MainContent_searchMainContent_"

	StateField         = controlPrefix + "ctl01$ctl00$cboStates"
	CountyField        = controlPrefix + "ctl01$ctl00$cboCounties"
	ChangeField        = controlPrefix + "ctl01$ctl00$btnChangeCounty"
	AcceptField        = controlPrefix + "ctl01$btnAccept"
	DocumentTypeField  = controlPrefix + "ctl00$cboDocumentType"
	DocumentGroupField = controlPrefix + "ctl00$cboDocumentGroup"
	DateStartField     = controlPrefix + "ctl00$tbDateStart"
	DateEndField       = controlPrefix + "ctl00$tbDateEnd"
	SearchField        = controlPrefix + "ctl00$btnSearchDocuments"
	ViewImageField     = controlPrefix + "ctl00$btnViewImage"
	NextField          = controlPrefix + "ctl00$btnNext"

	sessionCookie = "ASP.NET_SessionId"
)

type Document struct {
	ID       string
	Recorded string
	Type     string
	Name     string
	NameType string
	// Pages is the number of images served, PageCount overrides what the
	// viewer declares.
	Pages     int
	PageCount string
	NoImage   bool
	// FailPages are served as an html error page instead of an image.
	FailPages []int
	// NextDisabledAfter disables the next control on that page even though
	// more pages are declared.
	NextDisabledAfter int
	// Short renders the result row with four cells.
	Short bool
}

type DocumentType struct {
	Value string
	Text  string
}

type Portal struct {
	// States maps a state to its counties, in render order.
	States     map[string][]string
	StateOrder []string
	Documents  []Document
	// DocumentTypes is rendered in the search form's type select.
	DocumentTypes []DocumentType
	// DocumentGroups, when set, adds a group select next to the type select.
	DocumentGroups []DocumentType
	// Legacy renders the document group select and a page count label.
	Legacy bool
	// OmitPrintView drops the print view container from the results page.
	OmitPrintView bool
	// FailFirst answers the first n hits of "METHOD /path" with 503.
	FailFirst map[string]int
}

type session struct {
	state     string
	county    string
	accepted  bool
	viewstate string
	seq       int
	imagePage map[string]int
}

type Server struct {
	*httptest.Server
	portal Portal

	mu         sync.Mutex
	sessions   map[string]*session
	hits       map[string]int
	lastSearch url.Values
}

// DefaultPortal has one state with two counties and the lien document type.
func DefaultPortal() Portal {
	return Portal{
		States: map[string][]string{
			"ARIZONA":  {"NAVAJO", "APACHE"},
			"COLORADO": {"BACA", "SAN JUAN"},
		},
		StateOrder: []string{"ARIZONA", "COLORADO"},
		DocumentTypes: []DocumentType{
			{Value: "365|LIEN", Text: "LIEN"},
			{Value: "12|DEED", Text: "DEED"},
		},
	}
}

func NewServer(portal Portal) *Server {
	s := &Server{
		portal:   portal,
		sessions: map[string]*session{},
		hits:     map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.withSession(s.basePage))
	mux.HandleFunc("POST /{$}", s.withSession(s.selectLocality))
	mux.HandleFunc("GET /Disclaimer.aspx", s.withSession(s.disclaimerPage))
	mux.HandleFunc("POST /Disclaimer.aspx", s.withSession(s.acceptDisclaimer))
	mux.HandleFunc("GET /Introduction.aspx", s.withSession(s.introductionPage))
	mux.HandleFunc("GET /Search.aspx", s.withSession(s.searchPage))
	mux.HandleFunc("POST /Search.aspx", s.withSession(s.search))
	mux.HandleFunc("GET /Details.aspx", s.withSession(s.viewerPage))
	mux.HandleFunc("POST /Details.aspx", s.withSession(s.viewImage))
	mux.HandleFunc("GET /Image.aspx", s.withSession(s.imagePageByQuery))
	mux.HandleFunc("POST /ImageViewer.aspx", s.withSession(s.nextImage))
	mux.HandleFunc("GET /ImageHandler.ashx", s.withSession(s.imageHandler))

	s.Server = httptest.NewServer(mux)
	return s
}

// Hits returns how often "METHOD /path" was requested.
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// LastSearch returns the form of the last search postback.
func (s *Server) LastSearch() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSearch
}

// PageContent is the body served for page n of document id.
func PageContent(id string, n int) []byte {
	return []byte(fmt.Sprintf("\xff\xd8\xff\xe0 scanned %s page %d", id, n))
}

type handler func(w http.ResponseWriter, r *http.Request, sess *session)

func (s *Server) withSession(next handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		s.hits[key]++
		if s.hits[key] <= s.portal.FailFirst[key] {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		var sess *session
		cookie, err := r.Cookie(sessionCookie)
		if err == nil {
			sess = s.sessions[cookie.Value]
		}
		if sess == nil {
			id := "sess" + strconv.Itoa(len(s.sessions)+1)
			sess = &session{imagePage: map[string]int{}}
			s.sessions[id] = sess
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true})
		}

		if r.Method == http.MethodPost {
			err := r.ParseForm()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if sess.viewstate == "" || r.PostForm.Get("__VIEWSTATE") != sess.viewstate {
				http.Error(w, "Validation of viewstate MAC failed.", http.StatusInternalServerError)
				return
			}
		}

		next(w, r, sess)
	}
}

func (sess *session) issue(b *strings.Builder) {
	sess.seq++
	sess.viewstate = fmt.Sprintf("/wEPDwUK%d", sess.seq)
	fmt.Fprintf(b, `<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="%s" />`+"\n", sess.viewstate)
	b.WriteString(`<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="CA0B0334" />` + "\n")
	fmt.Fprintf(b, `<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="/wEdAA%d" />`+"\n", sess.seq)
}

func writePage(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><title>The County Recorder</title></head>\n<body>\n%s</body>\n</html>\n", body)
}

func option(b *strings.Builder, value, text string, selected bool) {
	attr := ""
	if selected {
		attr = ` selected="selected"`
	}
	fmt.Fprintf(b, "\t<option%s value=\"%s\">%s</option>\n", attr, html.EscapeString(value), html.EscapeString(text))
}

func (s *Server) basePage(w http.ResponseWriter, r *http.Request, sess *session) {
	var b strings.Builder
	b.WriteString(`<form method="post" action="./" id="form1">` + "\n")
	sess.issue(&b)

	fmt.Fprintf(&b, `<select name="%s" id="%sctl01_ctl00_cboStates">`+"\n", StateField, idPrefix)
	option(&b, "", "-- Select State --", sess.state == "")
	for i, state := range s.portal.StateOrder {
		option(&b, fmt.Sprintf("%d|%s", i+1, state), state, sess.state == state)
	}
	b.WriteString("</select>\n")

	fmt.Fprintf(&b, `<select name="%s" id="%sctl01_ctl00_cboCounties">`+"\n", CountyField, idPrefix)
	option(&b, "", "-- Select County --", sess.county == "")
	for i, county := range s.portal.States[sess.state] {
		option(&b, fmt.Sprintf("%d|%s", i+10, county), county, sess.county == county)
	}
	b.WriteString("</select>\n")

	fmt.Fprintf(&b, `<input type="submit" name="%s" value="Go" id="%sctl01_ctl00_btnChangeCounty" />`+"\n", ChangeField, idPrefix)
	b.WriteString("</form>\n")
	writePage(w, b.String())
}

func optionName(value string) string {
	_, name, found := strings.Cut(value, "|")
	if !found {
		return value
	}
	return name
}

func (s *Server) selectLocality(w http.ResponseWriter, r *http.Request, sess *session) {
	if r.PostForm.Has(StateField) {
		state := optionName(r.PostForm.Get(StateField))
		if _, ok := s.portal.States[state]; !ok {
			http.Error(w, "Invalid postback or callback argument.", http.StatusInternalServerError)
			return
		}
		if state != sess.state {
			sess.state = state
			sess.county = ""
		}
	}
	if r.PostForm.Has(CountyField) {
		county := optionName(r.PostForm.Get(CountyField))
		if !slices.Contains(s.portal.States[sess.state], county) {
			http.Error(w, "Invalid postback or callback argument.", http.StatusInternalServerError)
			return
		}
		sess.county = county
	}
	s.basePage(w, r, sess)
}

func (s *Server) disclaimerPage(w http.ResponseWriter, r *http.Request, sess *session) {
	var b strings.Builder
	b.WriteString(`<form method="post" action="./Disclaimer.aspx?RU=%2fIntroduction.aspx" id="form1">` + "\n")
	sess.issue(&b)
	b.WriteString("<p>The information provided is for reference only.</p>\n")
	fmt.Fprintf(&b, `<input type="submit" name="%s" value="Yes, I Accept" id="%sctl01_btnAccept" />`+"\n", AcceptField, idPrefix)
	b.WriteString("</form>\n")
	writePage(w, b.String())
}

func (s *Server) acceptDisclaimer(w http.ResponseWriter, r *http.Request, sess *session) {
	if r.PostForm.Get(AcceptField) != "Yes, I Accept" {
		http.Error(w, "disclaimer not accepted", http.StatusBadRequest)
		return
	}
	sess.accepted = true
	http.Redirect(w, r, r.URL.Query().Get("RU"), http.StatusFound)
}

func (s *Server) introductionPage(w http.ResponseWriter, r *http.Request, sess *session) {
	var b strings.Builder
	b.WriteString(`<form method="post" action="./Introduction.aspx" id="form1">` + "\n")
	sess.issue(&b)
	b.WriteString(`<a href="Search.aspx">Search</a>` + "\n</form>\n")
	writePage(w, b.String())
}

func (s *Server) searchPage(w http.ResponseWriter, r *http.Request, sess *session) {
	if !sess.accepted || sess.county == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	var b strings.Builder
	b.WriteString(`<form method="post" action="./Search.aspx" id="form1">` + "\n")
	sess.issue(&b)

	typeField, typeID := DocumentTypeField, "cboDocumentType"
	if s.portal.Legacy {
		typeField, typeID = DocumentGroupField, "cboDocumentGroup"
	}
	fmt.Fprintf(&b, `<select name="%s" id="%sctl00_%s">`+"\n", typeField, idPrefix, typeID)
	for _, dt := range s.portal.DocumentTypes {
		option(&b, dt.Value, dt.Text, false)
	}
	b.WriteString("</select>\n")
	if len(s.portal.DocumentGroups) > 0 && !s.portal.Legacy {
		fmt.Fprintf(&b, `<select name="%s" id="%sctl00_cboDocumentGroup">`+"\n", DocumentGroupField, idPrefix)
		for _, group := range s.portal.DocumentGroups {
			option(&b, group.Value, group.Text, false)
		}
		b.WriteString("</select>\n")
	}
	fmt.Fprintf(&b, `<input name="%s" type="text" id="%sctl00_tbDateStart" />`+"\n", DateStartField, idPrefix)
	fmt.Fprintf(&b, `<input name="%s" type="text" id="%sctl00_tbDateEnd" />`+"\n", DateEndField, idPrefix)
	fmt.Fprintf(&b, `<input type="submit" name="%s" value="Execute Search" id="%sctl00_btnSearchDocuments" />`+"\n", SearchField, idPrefix)
	b.WriteString("</form>\n")
	writePage(w, b.String())
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, sess *session) {
	if !sess.accepted {
		http.Error(w, "disclaimer not accepted", http.StatusForbidden)
		return
	}
	s.lastSearch = r.PostForm

	var b strings.Builder
	b.WriteString(`<form method="post" action="./Search.aspx" id="form1">` + "\n")
	sess.issue(&b)
	b.WriteString(`<table id="tableMain" class="layout">` + "\n<tr>\n")
	b.WriteString(`<td id="tableMain_Menu"><div class="menu"><table class="Results"><tr><td>menu</td></tr></table></div></td>` + "\n")
	b.WriteString(`<td id="tableMain_Content">` + "\n" + `<div class="main">` + "\n")
	if !s.portal.OmitPrintView {
		b.WriteString(`<div id="PrintResults">` + "\n")
	}
	b.WriteString(`<table class="Results" cellspacing="0">` + "\n")
	b.WriteString("<tr class=\"results-header-row\"><th>Item#</th><th>Document ID#</th><th>Recording Date</th><th>Document Type</th><th>Name</th><th>Name Type</th></tr>\n")
	for i, doc := range s.portal.Documents {
		class := "results-data-row listitem-background-color1"
		if i%2 == 1 {
			class = "results-data-row listitem-background-color2"
		}
		fmt.Fprintf(&b, "<tr class=\"%s\">\n", class)
		fmt.Fprintf(&b, "\t<td>%d</td>\n", i+1)
		fmt.Fprintf(&b, "\t<td><a href=\"Details.aspx?x=%s\">%s</a></td>\n", url.QueryEscape(doc.ID), html.EscapeString(doc.ID))
		fmt.Fprintf(&b, "\t<td>%s</td>\n", html.EscapeString(doc.Recorded))
		fmt.Fprintf(&b, "\t<td>%s</td>\n", html.EscapeString(doc.Type))
		if !doc.Short {
			fmt.Fprintf(&b, "\t<td>%s&nbsp;</td>\n", html.EscapeString(doc.Name))
			fmt.Fprintf(&b, "\t<td>%s</td>\n", html.EscapeString(doc.NameType))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	if !s.portal.OmitPrintView {
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>\n</td>\n</tr>\n</table>\n</form>\n")
	writePage(w, b.String())
}

func (s *Server) document(id string) (Document, bool) {
	for _, doc := range s.portal.Documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

func (s *Server) viewerPage(w http.ResponseWriter, r *http.Request, sess *session) {
	id := r.URL.Query().Get("x")
	doc, ok := s.document(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<form method="post" action="./Details.aspx?x=%s" id="form1">`+"\n", url.QueryEscape(id))
	sess.issue(&b)
	fmt.Fprintf(&b, "<h2>Document %s</h2>\n", html.EscapeString(id))
	if !doc.NoImage {
		fmt.Fprintf(&b, `<input type="submit" name="%s" value="View Image" id="%sctl00_btnViewImage" />`+"\n", ViewImageField, idPrefix)
	}
	count := doc.PageCount
	if count == "" {
		count = strconv.Itoa(doc.Pages)
	}
	if s.portal.Legacy {
		fmt.Fprintf(&b, `<span id="%sctl00_lblPageCount">Page 1 of %s</span>`+"\n", idPrefix, html.EscapeString(count))
	} else {
		fmt.Fprintf(&b, `<input name="%sctl00$tbPageCount" type="text" value="%s" readonly="readonly" id="%sctl00_tbPageCount" />`+"\n",
			controlPrefix, html.EscapeString(count), idPrefix)
	}
	b.WriteString("</form>\n")
	writePage(w, b.String())
}

func (s *Server) imagePage(w http.ResponseWriter, doc Document, page int, sess *session) {
	var b strings.Builder
	fmt.Fprintf(&b, `<form method="post" action="./ImageViewer.aspx?x=%s" id="form1">`+"\n", url.QueryEscape(doc.ID))
	sess.issue(&b)
	fmt.Fprintf(&b, `<img id="%sctl00_Image2" src="ImageHandler.ashx?x=%s&amp;PN=%d" />`+"\n", idPrefix, url.QueryEscape(doc.ID), page)

	disabled := page >= doc.Pages || (doc.NextDisabledAfter > 0 && page >= doc.NextDisabledAfter)
	attrs := ""
	if disabled {
		attrs = ` disabled="disabled" class="aspNetDisabled"`
	}
	fmt.Fprintf(&b, `<input type="submit" name="%s" value="Next Page" id="%sctl00_btnNext"%s />`+"\n", NextField, idPrefix, attrs)
	b.WriteString("</form>\n")
	writePage(w, b.String())
}

func (s *Server) viewImage(w http.ResponseWriter, r *http.Request, sess *session) {
	doc, ok := s.document(r.URL.Query().Get("x"))
	if !ok || doc.NoImage || r.PostForm.Get(ViewImageField) == "" {
		http.NotFound(w, r)
		return
	}
	sess.imagePage[doc.ID] = 1
	s.imagePage(w, doc, 1, sess)
}

func (s *Server) nextImage(w http.ResponseWriter, r *http.Request, sess *session) {
	doc, ok := s.document(r.URL.Query().Get("x"))
	if !ok || r.PostForm.Get(NextField) == "" {
		http.NotFound(w, r)
		return
	}
	page := sess.imagePage[doc.ID]
	if page == 0 {
		http.Error(w, "image viewer not open", http.StatusBadRequest)
		return
	}
	if page >= doc.Pages || (doc.NextDisabledAfter > 0 && page >= doc.NextDisabledAfter) {
		http.Error(w, "Invalid postback or callback argument.", http.StatusInternalServerError)
		return
	}
	page++
	sess.imagePage[doc.ID] = page
	s.imagePage(w, doc, page, sess)
}

func (s *Server) imagePageByQuery(w http.ResponseWriter, r *http.Request, sess *session) {
	doc, ok := s.document(r.URL.Query().Get("x"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	page, err := strconv.Atoi(r.URL.Query().Get("PN"))
	if err != nil || page < 1 || page > doc.Pages {
		http.NotFound(w, r)
		return
	}
	s.imagePage(w, doc, page, sess)
}

func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request, _ *session) {
	doc, ok := s.document(r.URL.Query().Get("x"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	page, err := strconv.Atoi(r.URL.Query().Get("PN"))
	if err != nil || page < 1 || page > doc.Pages {
		http.NotFound(w, r)
		return
	}
	if slices.Contains(doc.FailPages, page) {
		writePage(w, "<h1>Server Error in '/' Application.</h1>\n")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(PageContent(doc.ID, page))
}
