package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinVariants(t *testing.T) {
	require.Equal(t, []string{"thecountyrecorder", "thecountyrecorder-legacy"}, VariantNames())

	for _, name := range VariantNames() {
		v, err := LookupVariant(name)
		require.NoError(t, err)
		require.NoError(t, v.Validate(), name)
	}

	legacy, err := LookupVariant("thecountyrecorder-legacy")
	require.NoError(t, err)
	require.Equal(t, PagingPostback, legacy.Paging)
	require.Equal(t, "ctl00$ctl00$MainContent$searchMainContent$ctl00$cboDocumentGroup", legacy.Search.DocumentType.Name)
	require.Equal(t, TheCountyRecorder.Search.DateStart, legacy.Search.DateStart)
	require.Equal(t, TheCountyRecorder.Viewer.Next, legacy.Viewer.Next)

	_, err = LookupVariant("eagleweb")
	require.ErrorContains(t, err, "unknown portal variant")
}

func TestVariantMerge(t *testing.T) {
	merged, err := TheCountyRecorder.Merge(Variant{
		Name:             "custom",
		TimestampLayouts: []string{"2006-01-02"},
		Search:           SearchFields{DateLayout: "01/02/2006"},
	})
	require.NoError(t, err)
	require.Equal(t, "custom", merged.Name)
	require.Equal(t, []string{"2006-01-02"}, merged.TimestampLayouts)
	require.Equal(t, "01/02/2006", merged.Search.DateLayout)
	require.Equal(t, TheCountyRecorder.Search.DocumentType, merged.Search.DocumentType)

	// the base is left alone
	require.Equal(t, "01-02-2006", TheCountyRecorder.Search.DateLayout)
	require.Equal(t, DefaultTimestampLayouts, TheCountyRecorder.TimestampLayouts)
}

func TestVariantValidate(t *testing.T) {
	v := TheCountyRecorder.Clone()
	v.Paging = "scroll"
	require.ErrorContains(t, v.Validate(), "unknown paging strategy")

	v = TheCountyRecorder.Clone()
	v.Viewer.Next = ""
	require.NoError(t, v.Validate())
	v.Paging = PagingPostback
	require.Error(t, v.Validate())
}
