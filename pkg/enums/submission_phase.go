package enums

import "fmt"

// SubmissionPhase tracks a crypto payment submission.
type SubmissionPhase string

const (
	SubmissionIdle                     SubmissionPhase = "idle"
	SubmissionAwaitingWalletConnection SubmissionPhase = "awaiting_wallet_connection"
	SubmissionBuilding                 SubmissionPhase = "building"
	SubmissionAwaitingSignature        SubmissionPhase = "awaiting_signature"
	SubmissionSubmitting               SubmissionPhase = "submitting"
	SubmissionConfirming               SubmissionPhase = "confirming"
	SubmissionRecording                SubmissionPhase = "recording"
	SubmissionSucceeded                SubmissionPhase = "succeeded"
	SubmissionFailed                   SubmissionPhase = "failed"
)

var validSubmissionPhases = []SubmissionPhase{
	SubmissionIdle,
	SubmissionAwaitingWalletConnection,
	SubmissionBuilding,
	SubmissionAwaitingSignature,
	SubmissionSubmitting,
	SubmissionConfirming,
	SubmissionRecording,
	SubmissionSucceeded,
	SubmissionFailed,
}

func (s SubmissionPhase) String() string {
	return string(s)
}

func (s SubmissionPhase) IsValid() bool {
	for _, candidate := range validSubmissionPhases {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsProcessing is true while a submission is in flight.
func (s SubmissionPhase) IsProcessing() bool {
	switch s {
	case SubmissionBuilding, SubmissionAwaitingSignature, SubmissionSubmitting, SubmissionConfirming, SubmissionRecording:
		return true
	}
	return false
}

func ParseSubmissionPhase(value string) (SubmissionPhase, error) {
	for _, candidate := range validSubmissionPhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission phase %q", value)
}
