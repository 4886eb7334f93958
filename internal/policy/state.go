package policy

import "fmt"

// ReleaseState is the deployment stage supplied per run. Transitions between
// states belong to the deployment pipeline; this package only selects which
// rules apply.
type ReleaseState string

const (
	StateParked  ReleaseState = "parked"
	StateUAT     ReleaseState = "uat"
	StateStaging ReleaseState = "staging"
	StateLive    ReleaseState = "live"
)

func ParseReleaseState(s string) (ReleaseState, error) {
	switch ReleaseState(s) {
	case StateParked, StateUAT, StateStaging, StateLive:
		return ReleaseState(s), nil
	}
	return "", fmt.Errorf("unknown release state %q (want parked, uat, staging or live)", s)
}
