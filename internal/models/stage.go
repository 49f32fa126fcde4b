// internal/models/stage.go
package models

// CandidateStage is an ordered pipeline position for a candidate opportunity.
// The string values are the exact stage labels used by the CRM, so a stage
// can be written back to an upsert payload unchanged.
type CandidateStage string

const (
	CandidateStageProspect    CandidateStage = "Prospect"
	CandidateStageSubmitted   CandidateStage = "Submitted to Employer"
	CandidateStageInterview   CandidateStage = "Interview"
	CandidateStageOffer       CandidateStage = "Offer Extended"
	CandidateStageEmployed    CandidateStage = "Employed"
	CandidateStageNotEligible CandidateStage = "Not Eligible"
)

// DefaultCandidateStage is the earliest pipeline stage, used both for newly
// created opportunities and as the fallback for unrecognized remote values.
const DefaultCandidateStage = CandidateStageProspect

var candidateStageOrder = map[CandidateStage]int{
	CandidateStageProspect:    0,
	CandidateStageSubmitted:   1,
	CandidateStageInterview:   2,
	CandidateStageOffer:       3,
	CandidateStageEmployed:    4,
	CandidateStageNotEligible: 5,
}

// CandidateStageFromRemote maps a remote stage label to the internal stage.
// The lookup is case-sensitive and exact by design: the CRM picklist is the
// source of truth for these labels.
func CandidateStageFromRemote(name string) (CandidateStage, bool) {
	s := CandidateStage(name)
	_, ok := candidateStageOrder[s]
	return s, ok
}

// IsEmployment reports whether the stage semantically represents employment.
func (s CandidateStage) IsEmployment() bool {
	return s == CandidateStageEmployed
}

// IsTerminal reports whether the stage ends the pipeline for the candidate.
func (s CandidateStage) IsTerminal() bool {
	return s == CandidateStageEmployed || s == CandidateStageNotEligible
}

// JobStage is an ordered pipeline position for a job opportunity.
type JobStage string

const (
	JobStageOpen         JobStage = "Open"
	JobStageEngaged      JobStage = "Engaged"
	JobStageInterviewing JobStage = "Interviewing"
	JobStageFilled       JobStage = "Filled"
	JobStageClosed       JobStage = "Closed"
)

const DefaultJobStage = JobStageOpen

var jobStageOrder = map[JobStage]int{
	JobStageOpen:         0,
	JobStageEngaged:      1,
	JobStageInterviewing: 2,
	JobStageFilled:       3,
	JobStageClosed:       4,
}

// JobStageFromRemote maps a remote stage label to the internal job stage,
// case-sensitive exact match.
func JobStageFromRemote(name string) (JobStage, bool) {
	s := JobStage(name)
	_, ok := jobStageOrder[s]
	return s, ok
}

// CandidateStatus is the local status of a candidate, driven by stage
// transitions on their opportunities.
type CandidateStatus string

const (
	CandidateStatusActive     CandidateStatus = "active"
	CandidateStatusEmployed   CandidateStatus = "employed"
	CandidateStatusIneligible CandidateStatus = "ineligible"
)
