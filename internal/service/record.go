package service

import (
	"time"
)

const (
	// UntestedMarker is the Live text of a record that has not been checked yet.
	UntestedMarker = "*UNTESTED*"
	// ErrorPrefix starts the Live text of every down record.
	ErrorPrefix = "Error:"
)

// Sentinel is the CheckTime of a record that is down or untested.
var Sentinel = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)

// Record is one monitored endpoint together with its latest check result.
// Records are values; every mutation returns a new copy.
type Record struct {
	Name           string
	Address        string
	DisplayAddress string
	External       bool
	Backend        string
	TrustCert      bool
	Kind           Kind

	State     State
	CheckTime time.Time
	ErrorText string
}

// Untested returns r with its check result cleared.
func (r Record) Untested() Record {
	r.State = State{}
	r.CheckTime = Sentinel
	r.ErrorText = ""
	return r
}

// IsUp reports whether the service is currently up.
func (r Record) IsUp() bool {
	return !r.CheckTime.Equal(Sentinel)
}

// Tested reports whether at least one check has completed since the record
// was created.
func (r Record) Tested() bool {
	return r.State.Phase != PhaseUntested
}

// MarkUp records a successful check at now. CheckTime is only stamped on a
// transition into the up state.
func (r Record) MarkUp(detail string, now time.Time) Record {
	if !r.IsUp() {
		r.CheckTime = now
	}
	r.State = Up(detail)
	r.ErrorText = ""
	return r
}

// MarkDown records a failed check.
func (r Record) MarkDown(cause Cause, detail, errText string) Record {
	r.State = Down(cause, detail)
	r.CheckTime = Sentinel
	r.ErrorText = errText
	return r
}

// Live is the display status derived from the state.
func (r Record) Live() string {
	switch r.State.Phase {
	case PhaseUp:
		return r.State.Detail
	case PhaseDown:
		if r.State.Cause == CauseServer {
			return ErrorPrefix + r.State.Detail
		}
		if r.State.Detail != "" {
			return ErrorPrefix + r.State.Cause.String() + ":" + r.State.Detail
		}
		return ErrorPrefix + r.State.Cause.String()
	default:
		return UntestedMarker
	}
}

// Target is the address shown to humans.
func (r Record) Target() string {
	if r.DisplayAddress != "" {
		return r.DisplayAddress
	}
	return r.Address
}
