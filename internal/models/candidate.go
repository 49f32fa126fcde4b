// internal/models/candidate.go
package models

// Candidate is the slice of the candidate entity the sync engine needs.
// Full candidate CRUD lives in another subsystem; the sync engine only looks
// candidates up by number, updates their CRM contact link and transitions
// their status.
type Candidate struct {
	ID     string          `json:"id"`
	Number string          `json:"number"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Status CandidateStatus `json:"status"`

	// StatusComment records why the status last changed, e.g. which job and
	// stage drove the transition.
	StatusComment string `json:"statusComment,omitempty"`

	// ContactExternalID is the CRM contact record id, empty until the first
	// successful contact upsert.
	ContactExternalID string `json:"contactExternalId,omitempty"`
}

// Country is local reference data used to resolve remote country names.
type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
