package store

import (
	"net"
	"strings"

	"iasmeen/internal/analysis"

	"golang.org/x/net/publicsuffix"
)

// Registrable returns the registrable domain (eTLD+1) a result is about, so
// history can be grouped by organisation. It is empty for IP targets, file
// metadata, and names publicsuffix cannot place.
func Registrable(kind analysis.Kind, subject string) string {
	host := strings.ToLower(strings.TrimSpace(subject))
	switch kind {
	case analysis.KindEmail:
		i := strings.LastIndex(host, "@")
		if i < 0 {
			return ""
		}
		host = host[i+1:]
	case analysis.KindWhois, analysis.KindNetwork:
	default:
		return ""
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return registrable
}
