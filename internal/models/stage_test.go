// internal/models/stage_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandidateStageFromRemote(t *testing.T) {
	stage, ok := CandidateStageFromRemote("Submitted to Employer")
	assert.True(t, ok)
	assert.Equal(t, CandidateStageSubmitted, stage)

	_, ok = CandidateStageFromRemote("submitted to employer")
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok = CandidateStageFromRemote("Ghosted")
	assert.False(t, ok)
}

func TestCandidateStagePredicates(t *testing.T) {
	assert.True(t, CandidateStageEmployed.IsEmployment())
	assert.True(t, CandidateStageEmployed.IsTerminal())
	assert.True(t, CandidateStageNotEligible.IsTerminal())
	assert.False(t, CandidateStageNotEligible.IsEmployment())
	assert.False(t, CandidateStageInterview.IsTerminal())
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "C-100-0061x00000abcdeAAA", MatchKey("C-100", "0061x00000abcdeAAA"))
}

func TestJobOpportunityStale(t *testing.T) {
	now := time.Now().UTC()
	job := &JobOpportunity{SyncedAt: now.Add(-5 * time.Minute)}
	assert.True(t, job.Stale(3*time.Minute, now))
	assert.False(t, job.Stale(10*time.Minute, now))
}
