package service

// Phase is the coarse reachability state of a service.
type Phase uint8

const (
	PhaseUntested Phase = iota
	PhaseUp
	PhaseDown
)

func (p Phase) String() string {
	switch p {
	case PhaseUp:
		return "up"
	case PhaseDown:
		return "down"
	default:
		return "untested"
	}
}

// Cause classifies why a service is down.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseTLS
	CauseRefused
	CauseDNS
	CauseNoResponse
	CauseTimeout
	CauseInvalidAddress
	CauseException
	CauseUnreachable
	CauseNotImplemented
	// CauseServer means a real HTTP response with a non-OK status. The status
	// text and code are carried in State.Detail.
	CauseServer
)

func (c Cause) String() string {
	switch c {
	case CauseTLS:
		return "TLS/Certificate"
	case CauseRefused:
		return "Connection Refused"
	case CauseDNS:
		return "DNS"
	case CauseNoResponse:
		return "No Response"
	case CauseTimeout:
		return "Timeout"
	case CauseInvalidAddress:
		return "Invalid address"
	case CauseException:
		return "Exception!"
	case CauseUnreachable:
		return "Unreachable"
	case CauseNotImplemented:
		return "Check Not Implemented!"
	case CauseServer:
		return "Server"
	default:
		return ""
	}
}

// State is the tagged reachability state of a record.
//
//	Untested
//	Up(Detail)
//	Down(Cause, Detail)
type State struct {
	Phase  Phase
	Cause  Cause
	Detail string
}

func Up(detail string) State {
	return State{Phase: PhaseUp, Detail: detail}
}

func Down(cause Cause, detail string) State {
	return State{Phase: PhaseDown, Cause: cause, Detail: detail}
}
