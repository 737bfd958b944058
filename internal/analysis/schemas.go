package analysis

import "iasmeen/internal/schema"

// Response schemas sent with each request, derived from the record types.
var (
	WhoisSchema       = schema.For(WhoisRecord{})
	NetworkSchema     = schema.For(NetworkRecord{})
	EmailSchema       = schema.For(EmailRecord{})
	ReliabilitySchema = schema.For(ReliabilityReview{})
)
