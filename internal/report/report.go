// Package report renders the current analysis as localized Markdown. The
// same text feeds the terminal dashboard (through glamour) and the exports.
package report

import (
	"fmt"
	"sort"
	"strings"

	"iasmeen/internal/analysis"
	"iasmeen/internal/i18n"
	"iasmeen/internal/session"
)

// Markdown renders the result and review held by st. It returns an empty
// string when there is no result.
func Markdown(loc *i18n.Localizer, st session.State) string {
	if st.Primary.Result == nil {
		return ""
	}
	var review *analysis.ReliabilityReview
	if st.Reliability.Phase == session.PhaseSettled {
		review = st.Reliability.Review
	}
	return Render(loc, st.Primary.Result, review)
}

// Render renders a result and an optional review.
func Render(loc *i18n.Localizer, result analysis.Result, review *analysis.ReliabilityReview) string {
	w := &writer{loc: loc}
	w.printf("# %s\n\n_%s_\n\n", loc.T("title"), loc.T("subtitle"))

	switch r := result.(type) {
	case analysis.WhoisResult:
		w.whois(r.Data)
	case analysis.NetworkResult:
		w.network(r.Data)
	case analysis.EmailResult:
		w.email(r.Data)
	case analysis.MetadataResult:
		w.metadata(r.Data)
	}

	if review != nil {
		w.review(review)
	}
	w.printf("---\n\n_%s_\n", loc.T("footer"))
	return w.String()
}

type writer struct {
	strings.Builder
	loc *i18n.Localizer
}

func (w *writer) printf(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

func (w *writer) heading(key string) {
	w.printf("## %s\n\n", w.loc.T(key))
}

func (w *writer) sub(key string) {
	w.printf("### %s\n\n", w.loc.T(key))
}

func (w *writer) field(key, value string) {
	if value == "" {
		value = "-"
	}
	w.printf("- **%s:** %s\n", w.loc.T(key), value)
}

func (w *writer) list(items []string, emptyKey string) {
	if len(items) == 0 {
		w.printf("_%s_\n\n", w.loc.T(emptyKey))
		return
	}
	for _, it := range items {
		w.printf("- %s\n", it)
	}
	w.printf("\n")
}

func (w *writer) yesNo(b bool) string {
	if b {
		return w.loc.T("email.yes")
	}
	return w.loc.T("email.no")
}

func (w *writer) whois(rec analysis.WhoisRecord) {
	w.heading("whois.title")
	w.field("whois.domainName", rec.DomainName)
	w.field("whois.registrar", rec.Registrar)
	w.field("whois.creationDate", rec.CreationDate)
	w.field("whois.expiryDate", rec.ExpiryDate)
	w.field("whois.updatedDate", rec.UpdatedDate)
	w.printf("\n")

	w.sub("whois.nameServers")
	w.list(rec.NameServers, "noResults")

	if rec.Registrant != nil {
		w.sub("whois.registrantInfo")
		w.field("whois.name", rec.Registrant.Name)
		w.field("whois.organization", rec.Registrant.Organization)
		w.printf("\n")
	}
}

func (w *writer) network(rec analysis.NetworkRecord) {
	w.heading("nay.title")
	w.field("nay.target", rec.Target)
	w.field("nay.location", joinNonEmpty(", ", rec.Location.City, rec.Location.Country))
	w.field("nay.provider", rec.Hosting.Provider)
	w.field("nay.asn", rec.Hosting.ASN)
	w.printf("\n")

	w.sub("nay.openPorts")
	if len(rec.OpenPorts) == 0 {
		w.printf("-\n\n")
	} else {
		w.printf("| %s | %s |\n|---|---|\n", w.loc.T("nay.port"), w.loc.T("nay.service"))
		for _, p := range rec.OpenPorts {
			w.printf("| %d | %s |\n", p.Port, p.Service)
		}
		w.printf("\n")
	}

	w.sub("nay.sslCertificate")
	if rec.SSLCertificate == nil {
		w.printf("_%s_\n\n", w.loc.T("nay.noSsl"))
	} else {
		w.field("nay.issuer", rec.SSLCertificate.Issuer)
		w.field("nay.subject", rec.SSLCertificate.Subject)
		w.field("nay.validFrom", rec.SSLCertificate.ValidFrom)
		w.field("nay.validTo", rec.SSLCertificate.ValidTo)
		w.printf("\n")
	}

	w.sub("nay.technologies")
	w.list(rec.Technologies, "noResults")

	w.sub("nay.dnsRecords")
	for _, rr := range []struct {
		name   string
		values []string
	}{{"A", rec.DNSRecords.A}, {"AAAA", rec.DNSRecords.AAAA}, {"MX", rec.DNSRecords.MX}} {
		value := "-"
		if len(rr.values) > 0 {
			value = strings.Join(rr.values, ", ")
		}
		w.printf("- **%s:** %s\n", rr.name, value)
	}
	w.printf("\n")
}

func (w *writer) email(rec analysis.EmailRecord) {
	w.heading("email.title")
	w.field("email.emailAddress", rec.Email)
	w.field("email.syntaxValid", w.yesNo(rec.IsValidSyntax))
	w.field("email.domain", rec.Domain)
	w.field("email.mxRecordsFound", w.yesNo(rec.HasMXRecords))
	w.printf("\n")

	w.sub("email.dataBreaches")
	if len(rec.Breaches) == 0 {
		w.printf("_%s_\n\n", w.loc.T("email.noBreaches"))
	} else {
		for _, b := range rec.Breaches {
			w.printf("- %s (%s)\n", b.Source, b.Date)
		}
		w.printf("\n")
	}

	w.sub("email.socialProfiles")
	if len(rec.SocialProfiles) == 0 {
		w.printf("_%s_\n\n", w.loc.T("email.noProfiles"))
	} else {
		for _, p := range rec.SocialProfiles {
			w.printf("- [%s](%s)\n", p.Platform, p.URL)
		}
		w.printf("\n")
	}
}

func (w *writer) metadata(rec analysis.MetadataRecord) {
	w.heading("beda.title")
	w.field("beda.fileName", rec.FileName)
	w.field("beda.fileSize", rec.FileSize)
	w.printf("\n")

	if len(rec.Image) > 0 {
		w.sub("beda.imageProperties")
		w.descriptors(rec.Image)
	}

	w.sub("beda.gpsData")
	if rec.GPS.HasCoordinates() {
		w.field("beda.latitude", fmt.Sprintf("%.6f", *rec.GPS.Latitude))
		w.field("beda.longitude", fmt.Sprintf("%.6f", *rec.GPS.Longitude))
		w.printf("\n")
	} else {
		w.printf("_%s_\n\n", w.loc.T("beda.noGps"))
	}

	if len(rec.EXIF) > 0 {
		w.sub("beda.exifData")
		w.descriptors(rec.EXIF)
	}
}

func (w *writer) descriptors(m map[string]analysis.Descriptor) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.printf("- **%s:** %s\n", name, m[name].Description)
	}
	w.printf("\n")
}

func (w *writer) review(rv *analysis.ReliabilityReview) {
	w.heading("fira.title")
	level := w.loc.T("fira.reliabilityLevels." + string(rv.Reliability))
	w.field("fira.reliability", level)
	w.field("fira.summary", rv.Summary)
	w.printf("\n")

	if len(rv.Findings) > 0 {
		w.sub("fira.findings")
		for _, f := range rv.Findings {
			w.printf("- %s **%s:** %s\n", statusMark(f.Status), w.loc.T("fira.status."+string(f.Status)), f.Description)
		}
		w.printf("\n")
	}
}

func statusMark(s analysis.FindingStatus) string {
	switch s {
	case analysis.StatusPositive:
		return "✔"
	case analysis.StatusNegative:
		return "✘"
	}
	return "⚠"
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
