package constants

import "time"

// RFC 3339 date-time format string.
// Use this format for all date-time serialization and communication with external systems.
const RFC3339DateTimeFormat = "2006-01-02T15:04:05Z07:00"

// DefaultWaitlistTable is the destination table when WAITLIST_TABLE is unset.
const DefaultWaitlistTable = "waitlist"

// DefaultRequestTimeout bounds a whole request, including the outbound
// verification call and the database round trips.
const DefaultRequestTimeout = 30 * time.Second

// ServiceVersion is overridden at build time with
// -ldflags "-X github.com/akeren/waitlist-edge/pkg/constants.ServiceVersion=<tag>".
var ServiceVersion = "dev"
