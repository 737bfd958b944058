package report

import (
	"strings"
	"testing"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func english(t *testing.T) *i18n.Localizer {
	t.Helper()
	loc, err := i18n.New(i18n.English)
	require.NoError(t, err)
	return loc
}

func TestMarkdownEmptyState(t *testing.T) {
	assert.Empty(t, Markdown(i18n.Default(), session.Initial()))
}

func TestRenderWhoisWithReview(t *testing.T) {
	res := analysis.WhoisResult{Data: analysis.WhoisRecord{
		DomainName:   "example.com",
		Registrar:    "ACME Registrar",
		CreationDate: "1995-08-14",
		NameServers:  []string{"ns1.example.com", "ns2.example.com"},
		Registrant:   &analysis.Registrant{Organization: "Example Inc"},
	}}
	review := &analysis.ReliabilityReview{
		Reliability: analysis.ReliabilityEleve,
		Summary:     "Consistent dates",
		Findings:    []analysis.Finding{{Description: "Creation precedes expiry", Status: analysis.StatusPositive}},
	}
	md := Render(english(t), res, review)

	for _, want := range []string{
		"## WHOIS Information",
		"- **Registrar:** ACME Registrar",
		"- **Expiry date:** -",
		"- ns2.example.com",
		"### Registrant",
		"- **Organization:** Example Inc",
		"## Reliability Analysis",
		"- **Reliability:** High",
		"✔ **Positive:** Creation precedes expiry",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRenderNetworkWithoutCertificate(t *testing.T) {
	res := analysis.NetworkResult{Data: analysis.NetworkRecord{
		Target:     "8.8.8.8",
		Location:   analysis.Location{City: "Mountain View", Country: "US"},
		OpenPorts:  []analysis.OpenPort{{Port: 53, Service: "dns"}},
		DNSRecords: analysis.DNSRecords{A: []string{"8.8.8.8"}},
	}}
	md := Render(english(t), res, nil)
	assert.Contains(t, md, "| 53 | dns |")
	assert.Contains(t, md, "_No SSL certificate detected_")
	assert.Contains(t, md, "- **Location:** Mountain View, US")
	assert.Contains(t, md, "- **AAAA:** -")
	assert.NotContains(t, md, "Reliability Analysis")
}

func TestRenderEmailFrench(t *testing.T) {
	res := analysis.EmailResult{Data: analysis.EmailRecord{
		Email:         "a@b.io",
		IsValidSyntax: true,
		Breaches:      []analysis.Breach{{Source: "LinkedIn", Date: "2012"}},
	}}
	md := Render(i18n.Default(), res, nil)
	assert.Contains(t, md, "- **Syntaxe valide:** Oui")
	assert.Contains(t, md, "- **Enregistrements MX trouvés:** Non")
	assert.Contains(t, md, "- LinkedIn (2012)")
	assert.Contains(t, md, "_Aucun profil trouvé_")
}

func TestRenderMetadataSortsTags(t *testing.T) {
	lat, long := 48.8566, 2.3522
	res := analysis.MetadataResult{Data: analysis.MetadataRecord{
		FileName: "photo.jpg",
		FileSize: "2000.00 KB",
		EXIF: map[string]analysis.Descriptor{
			"Model": {Description: "EOS"},
			"Make":  {Description: "Canon"},
		},
		GPS: &analysis.GPS{Latitude: &lat, Longitude: &long},
	}}
	md := Render(english(t), res, nil)
	assert.Less(t, strings.Index(md, "**Make:**"), strings.Index(md, "**Model:**"))
	assert.Contains(t, md, "- **Latitude:** 48.856600")
	assert.Equal(t, md, Render(english(t), res, nil))
}

func TestMarkdownOmitsPendingReview(t *testing.T) {
	st := session.Initial()
	st, _ = session.Reduce(st, session.SearchStarted{Generation: 1})
	st, _ = session.Reduce(st, session.SearchSettled{Generation: 1, Result: analysis.WhoisResult{}})
	st, _ = session.Reduce(st, session.ReliabilityStarted{Generation: 1})
	assert.NotContains(t, Markdown(english(t), st), "Reliability Analysis")
}
