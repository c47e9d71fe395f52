package recorder

import (
	"fmt"
	"slices"
	"sort"

	"dario.cat/mergo"
)

// PagingStrategy is how a portal moves from one image page to the next.
type PagingStrategy string

const (
	// PagingQuery requests every page directly with a page number parameter.
	PagingQuery PagingStrategy = "query"
	// PagingPostback posts the viewer's "next" button once per page.
	PagingPostback PagingStrategy = "postback"
)

// SelectField is a <select> element, addressed by id when reading its options
// and by name when posting the chosen value.
type SelectField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Button struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SearchFields struct {
	DocumentType SelectField `json:"documentType"`
	// DocumentGroup is only posted when it has a name and the criteria carry a
	// group.
	DocumentGroup SelectField `json:"documentGroup"`
	DateStart     string      `json:"dateStart"`
	DateEnd       string      `json:"dateEnd"`
	// DateLayout is the time layout the date inputs expect.
	DateLayout string `json:"dateLayout"`
	Submit     Button `json:"submit"`
	// Marker must match on the page returned by the search.
	Marker string `json:"marker"`
}

// ResultsLayout describes the containers around the result rows, from the
// outermost inward.
type ResultsLayout struct {
	Frame     string `json:"frame"`
	PrintView string `json:"printView"`
	Table     string `json:"table"`
	Row       string `json:"row"`
	MinCells  int    `json:"minCells"`
}

type ViewerLayout struct {
	ViewImage string `json:"viewImage"`
	PageCount string `json:"pageCount"`
	// ImagePath is the per page resource used by query paging.
	ImagePath string `json:"imagePath"`
	PageParam string `json:"pageParam"`
	// Image is the element on an image page that points at the binary.
	Image string `json:"image"`
	// Next and NextButton drive postback paging.
	Next       string `json:"next"`
	NextButton Button `json:"nextButton"`
}

// Variant is the field-name table of one portal release. Server control names
// drift between releases so none of them are hard-coded elsewhere.
type Variant struct {
	Name string `json:"name"`

	BasePath       string `json:"basePath"`
	SearchPath     string `json:"searchPath"`
	DisclaimerPath string `json:"disclaimerPath"`

	Tokens TokenFields `json:"tokens"`

	Jurisdiction     SelectField `json:"jurisdiction"`
	SubJurisdiction  SelectField `json:"subJurisdiction"`
	ChangeButton     Button      `json:"changeButton"`
	DisclaimerAccept Button      `json:"disclaimerAccept"`

	Search           SearchFields   `json:"search"`
	Results          ResultsLayout  `json:"results"`
	Viewer           ViewerLayout   `json:"viewer"`
	Paging           PagingStrategy `json:"paging"`
	TimestampLayouts []string       `json:"timestampLayouts"`
}

const controlPrefix = "ctl00$ctl00$MainContent$searchMainContent$"
const idPrefix = "MainContent_searchMainContent_"

var TheCountyRecorder = Variant{
	Name:           "thecountyrecorder",
	BasePath:       "/",
	SearchPath:     "/Search.aspx",
	DisclaimerPath: "/Disclaimer.aspx?RU=%2FIntroduction.aspx",
	Tokens:         DefaultTokenFields,
	Jurisdiction: SelectField{
		ID:   idPrefix + "ctl01_ctl00_cboStates",
		Name: controlPrefix + "ctl01$ctl00$cboStates",
	},
	SubJurisdiction: SelectField{
		ID:   idPrefix + "ctl01_ctl00_cboCounties",
		Name: controlPrefix + "ctl01$ctl00$cboCounties",
	},
	ChangeButton: Button{
		Name:  controlPrefix + "ctl01$ctl00$btnChangeCounty",
		Value: "Go",
	},
	DisclaimerAccept: Button{
		Name:  controlPrefix + "ctl01$btnAccept",
		Value: "Yes, I Accept",
	},
	Search: SearchFields{
		DocumentType: SelectField{
			ID:   idPrefix + "ctl00_cboDocumentType",
			Name: controlPrefix + "ctl00$cboDocumentType",
		},
		DateStart:  controlPrefix + "ctl00$tbDateStart",
		DateEnd:    controlPrefix + "ctl00$tbDateEnd",
		DateLayout: "01-02-2006",
		Submit: Button{
			Name:  controlPrefix + "ctl00$btnSearchDocuments",
			Value: "Execute Search",
		},
	},
	Results: ResultsLayout{
		Frame:     "#tableMain_Content div.main",
		PrintView: "div#PrintResults",
		Table:     "table.Results",
		Row:       "tr.results-data-row",
		MinCells:  6,
	},
	Viewer: ViewerLayout{
		ViewImage: "input#" + idPrefix + "ctl00_btnViewImage",
		PageCount: "input#" + idPrefix + "ctl00_tbPageCount",
		ImagePath: "/Image.aspx",
		PageParam: "PN",
		Image:     "img#" + idPrefix + "ctl00_Image2",
		Next:      "input#" + idPrefix + "ctl00_btnNext",
		NextButton: Button{
			Name:  controlPrefix + "ctl00$btnNext",
			Value: "Next Page",
		},
	},
	Paging:           PagingQuery,
	TimestampLayouts: DefaultTimestampLayouts,
}

// TheCountyRecorderLegacy is the older release that searches by document
// group and pages through images with postbacks.
var TheCountyRecorderLegacy = mustMerge(TheCountyRecorder, Variant{
	Name: "thecountyrecorder-legacy",
	Search: SearchFields{
		DocumentType: SelectField{
			ID:   idPrefix + "ctl00_cboDocumentGroup",
			Name: controlPrefix + "ctl00$cboDocumentGroup",
		},
	},
	Viewer: ViewerLayout{
		PageCount: "span#" + idPrefix + "ctl00_lblPageCount",
	},
	Paging: PagingPostback,
})

var variants = map[string]Variant{
	TheCountyRecorder.Name:       TheCountyRecorder,
	TheCountyRecorderLegacy.Name: TheCountyRecorderLegacy,
}

func LookupVariant(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown portal variant %q, known variants: %v", name, VariantNames())
	}
	return v.Clone(), nil
}

func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a copy of v with every non-zero field of override applied on
// top. Slices in override replace rather than extend.
func (v Variant) Merge(override Variant) (Variant, error) {
	out := v.Clone()
	err := mergo.Merge(&out, override.Clone(), mergo.WithOverride)
	if err != nil {
		return Variant{}, err
	}
	return out, nil
}

func (v Variant) Clone() Variant {
	v.Tokens.Required = slices.Clone(v.Tokens.Required)
	v.Tokens.Optional = slices.Clone(v.Tokens.Optional)
	v.TimestampLayouts = slices.Clone(v.TimestampLayouts)
	return v
}

func mustMerge(base, override Variant) Variant {
	out, err := base.Merge(override)
	if err != nil {
		panic(err)
	}
	return out
}

// Validate checks that the fields every job needs are filled in.
func (v Variant) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("variant %q: %s is required", v.Name, field)
	}
	switch {
	case v.BasePath == "":
		return missing("basePath")
	case v.SearchPath == "":
		return missing("searchPath")
	case v.DisclaimerPath == "":
		return missing("disclaimerPath")
	case len(v.Tokens.Required) == 0:
		return missing("tokens.required")
	case v.Jurisdiction.ID == "" || v.Jurisdiction.Name == "":
		return missing("jurisdiction")
	case v.SubJurisdiction.ID == "" || v.SubJurisdiction.Name == "":
		return missing("subJurisdiction")
	case v.Search.DocumentType.Name == "":
		return missing("search.documentType.name")
	case v.Search.DateStart == "" || v.Search.DateEnd == "":
		return missing("search date fields")
	case v.Search.DateLayout == "":
		return missing("search.dateLayout")
	case v.Results.Frame == "" || v.Results.PrintView == "" || v.Results.Table == "" || v.Results.Row == "":
		return missing("results layout")
	case v.Viewer.ViewImage == "" || v.Viewer.PageCount == "":
		return missing("viewer layout")
	}
	switch v.Paging {
	case PagingQuery:
		if v.Viewer.ImagePath == "" || v.Viewer.PageParam == "" {
			return missing("viewer.imagePath and viewer.pageParam")
		}
	case PagingPostback:
		if v.Viewer.Next == "" || v.Viewer.NextButton.Name == "" {
			return missing("viewer.next and viewer.nextButton")
		}
	default:
		return fmt.Errorf("variant %q: unknown paging strategy %q", v.Name, v.Paging)
	}
	return nil
}
