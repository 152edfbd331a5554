package model

// ClaimType identifies which authoritative collaborator can check a claim.
// Adding a type here requires a matching case in the verifier dispatch, so
// new claim kinds are a compile-time-checked addition.
type ClaimType string

const (
	ClaimPoliticalGiving ClaimType = "political_giving"
	ClaimInsiderStatus   ClaimType = "insider_status"
	ClaimBoardMembership ClaimType = "board_membership"
	ClaimPropertyValue   ClaimType = "property_value"
	ClaimNetWorth        ClaimType = "net_worth"
)

// Claim is an atomic, independently-checkable assertion extracted from the
// merged profile. Ephemeral; produced fresh on every verification run.
type Claim struct {
	Type          ClaimType `json:"type"`
	Description   string    `json:"description"`
	Value         any       `json:"value"`
	ExtractedFrom string    `json:"extracted_from"`
}

// VerificationStatus is the outcome of checking one claim.
type VerificationStatus string

const (
	VerificationVerified     VerificationStatus = "VERIFIED"
	VerificationContradicted VerificationStatus = "CONTRADICTED"
	VerificationUnverifiable VerificationStatus = "UNVERIFIABLE"
	VerificationPartial      VerificationStatus = "PARTIAL"
)

// ClaimVerification pairs a claim with the collaborator's finding.
type ClaimVerification struct {
	Claim      Claim              `json:"claim"`
	APIValue   any                `json:"api_value,omitempty"`
	Status     VerificationStatus `json:"status"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source,omitempty"`
	Details    string             `json:"details,omitempty"`
}

// VerificationReport aggregates claim checks for one subject.
// Hallucinations is the CONTRADICTED subset.
type VerificationReport struct {
	SubjectID         string              `json:"subject_id"`
	Claims            []ClaimVerification `json:"claims"`
	Verified          int                 `json:"verified"`
	Contradicted      int                 `json:"contradicted"`
	Unverifiable      int                 `json:"unverifiable"`
	Partial           int                 `json:"partial"`
	OverallConfidence float64             `json:"overall_confidence"`
	Hallucinations    []ClaimVerification `json:"hallucinations,omitempty"`
	Recommendations   []string            `json:"recommendations,omitempty"`
}
