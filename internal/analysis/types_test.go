package analysis

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetKind(t *testing.T) {
	for in, want := range map[string]TargetKind{
		"domain": TargetDomain, "WHOIS": TargetDomain,
		" ip ": TargetIP, "network": TargetIP,
		"email": TargetEmail, "mail": TargetEmail,
	} {
		got, err := ParseTargetKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTargetKind("image")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestTargetKindNextCycles(t *testing.T) {
	assert.Equal(t, TargetIP, TargetDomain.Next())
	assert.Equal(t, TargetEmail, TargetIP.Next())
	assert.Equal(t, TargetDomain, TargetEmail.Next())
	assert.Equal(t, TargetDomain, TargetKind("").Next())
}

func TestReliabilityLevel(t *testing.T) {
	assert.Equal(t, LevelHigh, ReliabilityEleve.Level())
	assert.Equal(t, LevelHigh, ReliabilityHigh.Level())
	assert.Equal(t, LevelMedium, ReliabilityMoyenne.Level())
	assert.Equal(t, LevelMedium, ReliabilityMedium.Level())
	assert.Equal(t, LevelLow, ReliabilityFaible.Level())
	assert.Equal(t, LevelLow, ReliabilityLow.Level())
	assert.Equal(t, LevelUnknown, Reliability("Perhaps").Level())
	assert.Equal(t, "MEDIUM", LevelMedium.String())
}

func TestReviewable(t *testing.T) {
	assert.True(t, Reviewable(WhoisResult{}))
	assert.True(t, Reviewable(NetworkResult{}))
	assert.True(t, Reviewable(EmailResult{}))
	assert.False(t, Reviewable(MetadataResult{}))
	assert.False(t, Reviewable(nil))
}

func TestSchemasRequiredSets(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"domainName", "registrar", "creationDate", "expiryDate", "updatedDate", "nameServers"},
		WhoisSchema.Required)
	assert.NotContains(t, WhoisSchema.Required, "registrant")

	assert.ElementsMatch(t,
		[]string{"target", "location", "hosting", "openPorts", "sslCertificate", "technologies", "dnsRecords"},
		NetworkSchema.Required)
	ssl := NetworkSchema.Properties["sslCertificate"]
	require.NotNil(t, ssl.Nullable)
	assert.True(t, *ssl.Nullable)

	for _, field := range []string{"breaches", "socialProfiles"} {
		prop := EmailSchema.Properties[field]
		require.NotNil(t, prop.Nullable, field)
		assert.True(t, *prop.Nullable, field)
		assert.True(t, slices.Contains(EmailSchema.Required, field), field)
	}

	rel := ReliabilitySchema.Properties["reliability"]
	assert.ElementsMatch(t, []string{"Élevée", "Moyenne", "Faible", "High", "Medium", "Low"}, rel.Enum)
	status := ReliabilitySchema.Properties["findings"].Items.Properties["status"]
	assert.Equal(t, []string{"positive", "negative", "warning"}, status.Enum)
}
