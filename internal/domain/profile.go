package domain

// CredentialProfile holds the behavioral baseline for one credential,
// recomputed wholesale on every batch run.
type CredentialProfile struct {
	CredentialID string `json:"credentialId"`

	// MeanEntryHour is the arithmetic mean of the hour of day over the
	// credential's ENTRY events. Nil when no entries were observed - a
	// fabricated zero baseline would make every entry look atypical.
	MeanEntryHour *float64 `json:"meanEntryHour,omitempty"`

	// MeanExitHour is the same statistic over EXIT events.
	MeanExitHour *float64 `json:"meanExitHour,omitempty"`
}
