// Package analysis holds the result model of the dashboard: the records each
// producer yields, the sealed Result union wrapping them, and the Dispatcher
// that routes a target to its producer.
package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// TargetKind selects the producer for a text search.
type TargetKind string

const (
	TargetDomain TargetKind = "domain"
	TargetIP     TargetKind = "ip"
	TargetEmail  TargetKind = "email"
)

// TargetKinds lists the kinds in dashboard tab order.
var TargetKinds = []TargetKind{TargetDomain, TargetIP, TargetEmail}

// ErrUnknownTarget is returned for a TargetKind outside TargetKinds.
var ErrUnknownTarget = errors.New("unknown target kind")

// ParseTargetKind accepts the canonical values plus a few aliases.
func ParseTargetKind(s string) (TargetKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domain", "whois":
		return TargetDomain, nil
	case "ip", "network":
		return TargetIP, nil
	case "email", "mail":
		return TargetEmail, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// Next cycles through TargetKinds.
func (k TargetKind) Next() TargetKind {
	for i, kind := range TargetKinds {
		if kind == k {
			return TargetKinds[(i+1)%len(TargetKinds)]
		}
	}
	return TargetDomain
}

// Kind discriminates the Result variants.
type Kind string

const (
	KindWhois    Kind = "whois"
	KindNetwork  Kind = "network"
	KindEmail    Kind = "email"
	KindMetadata Kind = "metadata"
)

// Family names a request type sent to the content-generation service.
type Family string

const (
	FamilyWhois       Family = "WHOIS"
	FamilyNetwork     Family = "NETWORK"
	FamilyEmail       Family = "EMAIL"
	FamilyReliability Family = "RELIABILITY"
)

// WhoisRecord is the WHOIS producer output. Dates are opaque strings.
type WhoisRecord struct {
	DomainName   string      `json:"domainName" schema:"required"`
	Registrar    string      `json:"registrar" schema:"required"`
	CreationDate string      `json:"creationDate" schema:"required"`
	ExpiryDate   string      `json:"expiryDate" schema:"required"`
	UpdatedDate  string      `json:"updatedDate" schema:"required"`
	NameServers  []string    `json:"nameServers" schema:"required"`
	Registrant   *Registrant `json:"registrant,omitempty"`
}

type Registrant struct {
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// NetworkRecord is the network analysis producer output.
type NetworkRecord struct {
	Target         string          `json:"target" schema:"required"`
	Location       Location        `json:"location" schema:"required"`
	Hosting        Hosting         `json:"hosting" schema:"required"`
	OpenPorts      []OpenPort      `json:"openPorts" schema:"required"`
	SSLCertificate *SSLCertificate `json:"sslCertificate" schema:"required,nullable"` // nil: no certificate observed
	Technologies   []string        `json:"technologies" schema:"required"`
	DNSRecords     DNSRecords      `json:"dnsRecords" schema:"required"`
}

type Location struct {
	City    string `json:"city" schema:"required"`
	Country string `json:"country" schema:"required"`
}

type Hosting struct {
	Provider string `json:"provider" schema:"required"`
	ASN      string `json:"asn" schema:"required"`
}

type OpenPort struct {
	Port    int    `json:"port" schema:"required"`
	Service string `json:"service" schema:"required"`
}

type SSLCertificate struct {
	Issuer    string `json:"issuer"`
	Subject   string `json:"subject"`
	ValidFrom string `json:"validFrom"`
	ValidTo   string `json:"validTo"`
}

type DNSRecords struct {
	A    []string `json:"A"`
	AAAA []string `json:"AAAA"`
	MX   []string `json:"MX"`
}

// EmailRecord is the email producer output. A nil Breaches or SocialProfiles
// is the explicit "none" answer.
type EmailRecord struct {
	Email          string          `json:"email" schema:"required"`
	IsValidSyntax  bool            `json:"isValidSyntax" schema:"required"`
	Domain         string          `json:"domain" schema:"required"`
	HasMXRecords   bool            `json:"hasMxRecords" schema:"required"`
	Breaches       []Breach        `json:"breaches" schema:"required,nullable"`
	SocialProfiles []SocialProfile `json:"socialProfiles" schema:"required,nullable"`
}

type Breach struct {
	Source string `json:"source" schema:"required"`
	Date   string `json:"date" schema:"required"`
}

type SocialProfile struct {
	Platform string `json:"platform" schema:"required"`
	URL      string `json:"url" schema:"required"`
}

// Descriptor is a single metadata entry as shown to the user.
type Descriptor struct {
	Description string `json:"description"`
}

// GPS holds extracted coordinates. Latitude/Longitude are nil when the
// source carried no numeric value; Extra keeps whatever else was present.
type GPS struct {
	Latitude  *float64       `json:"Latitude,omitempty"`
	Longitude *float64       `json:"Longitude,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// HasCoordinates reports whether both coordinates are numeric.
func (g *GPS) HasCoordinates() bool {
	return g != nil && g.Latitude != nil && g.Longitude != nil
}

// MetadataRecord is the normalized image metadata.
type MetadataRecord struct {
	FileName string                `json:"fileName"`
	FileSize string                `json:"fileSize"`
	Image    map[string]Descriptor `json:"image,omitempty"`
	EXIF     map[string]Descriptor `json:"exif,omitempty"`
	GPS      *GPS                  `json:"gps,omitempty"`
}

// Reliability is the overall score of a review. The service may answer in
// French or English; Level folds both onto one ordinal.
type Reliability string

const (
	ReliabilityEleve   Reliability = "Élevée"
	ReliabilityMoyenne Reliability = "Moyenne"
	ReliabilityFaible  Reliability = "Faible"
	ReliabilityHigh    Reliability = "High"
	ReliabilityMedium  Reliability = "Medium"
	ReliabilityLow     Reliability = "Low"
)

// Level is the 3-level ordinal behind a Reliability. Higher is better.
type Level int

const (
	LevelUnknown Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// Level maps the score onto its ordinal.
func (r Reliability) Level() Level {
	switch r {
	case ReliabilityEleve, ReliabilityHigh:
		return LevelHigh
	case ReliabilityMoyenne, ReliabilityMedium:
		return LevelMedium
	case ReliabilityFaible, ReliabilityLow:
		return LevelLow
	}
	return LevelUnknown
}

// FindingStatus classifies a single review finding.
type FindingStatus string

const (
	StatusPositive FindingStatus = "positive"
	StatusNegative FindingStatus = "negative"
	StatusWarning  FindingStatus = "warning"
)

// Finding is one observation of a reliability review.
type Finding struct {
	Description string        `json:"description" schema:"required"`
	Status      FindingStatus `json:"status" schema:"required,enum=positive|negative|warning"`
}

// ReliabilityReview is the secondary analysis of a settled result.
type ReliabilityReview struct {
	Reliability Reliability `json:"reliability" schema:"required,enum=Élevée|Moyenne|Faible|High|Medium|Low,desc=Overall reliability score"`
	Summary     string      `json:"summary" schema:"required,desc=A brief summary of the reliability analysis."`
	Findings    []Finding   `json:"findings" schema:"required"`
}

// Result is the current analysis. A nil Result means no analysis has
// completed. The unexported method closes the set of variants; switch on
// the concrete type to handle each.
type Result interface {
	Kind() Kind
	Subject() string
	// Record returns the wrapped record for serialization.
	Record() any
	isResult()
}

type WhoisResult struct{ Data WhoisRecord }
type NetworkResult struct{ Data NetworkRecord }
type EmailResult struct{ Data EmailRecord }
type MetadataResult struct{ Data MetadataRecord }

func (WhoisResult) Kind() Kind    { return KindWhois }
func (NetworkResult) Kind() Kind  { return KindNetwork }
func (EmailResult) Kind() Kind    { return KindEmail }
func (MetadataResult) Kind() Kind { return KindMetadata }

func (r WhoisResult) Subject() string    { return r.Data.DomainName }
func (r NetworkResult) Subject() string  { return r.Data.Target }
func (r EmailResult) Subject() string    { return r.Data.Email }
func (r MetadataResult) Subject() string { return r.Data.FileName }

func (r WhoisResult) Record() any    { return r.Data }
func (r NetworkResult) Record() any  { return r.Data }
func (r EmailResult) Record() any    { return r.Data }
func (r MetadataResult) Record() any { return r.Data }

func (WhoisResult) isResult()    {}
func (NetworkResult) isResult()  {}
func (EmailResult) isResult()    {}
func (MetadataResult) isResult() {}

// Reviewable reports whether the secondary reliability pass may run on r.
// File metadata is never offered the pass.
func Reviewable(r Result) bool {
	if r == nil {
		return false
	}
	switch r.(type) {
	case WhoisResult, NetworkResult, EmailResult:
		return true
	case MetadataResult:
		return false
	}
	return false
}
