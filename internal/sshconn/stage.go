package sshconn

// Stage is a totally ordered connection stage. Stages progress
// monotonically; ConnectingProxy/ConnectingJumpHost are skipped when the
// corresponding config is absent.
type Stage int

const (
	Initializing Stage = iota
	ConnectingProxy
	ConnectingJumpHost
	ConnectingHost
	Handshaking
	Authenticating
	EstablishingChannel
	StartingSession
	Connected
)

func (s Stage) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case ConnectingProxy:
		return "ConnectingProxy"
	case ConnectingJumpHost:
		return "ConnectingJumpHost"
	case ConnectingHost:
		return "ConnectingHost"
	case Handshaking:
		return "Handshaking"
	case Authenticating:
		return "Authenticating"
	case EstablishingChannel:
		return "EstablishingChannel"
	case StartingSession:
		return "StartingSession"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Progress renders a stage as a 0..1 fraction for a connection progress bar.
func (s Stage) Progress() float64 {
	switch s {
	case Initializing:
		return 0.0
	case ConnectingProxy:
		return 0.1
	case ConnectingJumpHost:
		return 0.2
	case ConnectingHost:
		return 0.3
	case Handshaking:
		return 0.5
	case Authenticating:
		return 0.7
	case EstablishingChannel:
		return 0.85
	case StartingSession:
		return 0.95
	case Connected:
		return 1.0
	default:
		return 0.0
	}
}

// Label renders a short human-readable description of the stage.
func (s Stage) Label() string {
	switch s {
	case Initializing:
		return "Initializing connection"
	case ConnectingProxy:
		return "Connecting to proxy"
	case ConnectingJumpHost:
		return "Connecting to jump host"
	case ConnectingHost:
		return "Connecting to host"
	case Handshaking:
		return "SSH handshake"
	case Authenticating:
		return "Authenticating"
	case EstablishingChannel:
		return "Establishing channel"
	case StartingSession:
		return "Starting session"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}
