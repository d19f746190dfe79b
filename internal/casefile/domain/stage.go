package domain

import "fmt"

// Stage defines a step in the case workflow
type Stage string

const (
	StageReceived         Stage = "received"
	StageDirected         Stage = "directed"
	StageRegistered       Stage = "registered"
	StageAllocated        Stage = "allocated"
	StageInProgress       Stage = "in_progress"
	StageComplianceReview Stage = "compliance_review"
	StageClosed           Stage = "closed"
	StageNotified         Stage = "notified"
)

// StageOrder is the fixed workflow order. Cases move forward one stage
// at a time; only an admin override may deviate.
var StageOrder = []Stage{
	StageReceived,
	StageDirected,
	StageRegistered,
	StageAllocated,
	StageInProgress,
	StageComplianceReview,
	StageClosed,
	StageNotified,
}

var stageIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(StageOrder))
	for i, s := range StageOrder {
		m[s] = i
	}
	return m
}()

// ParseStage validates a stage name
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if _, ok := stageIndex[stage]; !ok {
		return "", fmt.Errorf("unknown stage: %q", s)
	}
	return stage, nil
}

// Index returns the position of the stage in the workflow order
func (s Stage) Index() int {
	i, ok := stageIndex[s]
	if !ok {
		return -1
	}
	return i
}

// Valid reports whether the stage is a known workflow stage
func (s Stage) Valid() bool {
	_, ok := stageIndex[s]
	return ok
}

// Next returns the immediate successor stage, or "" for the final stage
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i+1 >= len(StageOrder) {
		return ""
	}
	return StageOrder[i+1]
}

// IsFinal reports whether the stage is the last in the workflow
func (s Stage) IsFinal() bool {
	return s == StageNotified
}

// CanAdvanceTo reports whether to is the immediate successor of s
func (s Stage) CanAdvanceTo(to Stage) bool {
	return to.Valid() && s.Next() == to
}
