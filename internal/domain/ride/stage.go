package ride

import (
	"errors"
	"strings"
)

// Stage is the server-reported ride stage as seen by the client.
type Stage string

const (
	StageRequested  Stage = "REQUESTED"
	StageMatched    Stage = "MATCHED"
	StageEnRoute    Stage = "EN_ROUTE"
	StageArrived    Stage = "ARRIVED"
	StageInProgress Stage = "IN_PROGRESS"
	StageCompleted  Stage = "COMPLETED"
	StageCancelled  Stage = "CANCELLED"
)

var ErrInvalidStage = errors.New("invalid ride stage")

// ParseStage normalizes (uppercases+trims) and validates a stage string.
func ParseStage(in string) (Stage, error) {
	stage := Stage(strings.ToUpper(strings.TrimSpace(in)))
	if stage.Valid() {
		return stage, nil
	}
	return "", ErrInvalidStage
}

// Valid reports whether stage is one of the allowed stage constants.
func (stage Stage) Valid() bool {
	switch stage {
	case StageRequested, StageMatched, StageEnRoute, StageArrived, StageInProgress, StageCompleted, StageCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Stage.
func (stage Stage) String() string {
	return string(stage)
}

// Terminal indicates if the stage is a terminal state; a chat session for a
// terminal ride is read-only.
func (stage Stage) Terminal() bool {
	return stage == StageCompleted || stage == StageCancelled
}
