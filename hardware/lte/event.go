package lte

import "fmt"

// Event is one parsed unsolicited modem notification. Concrete types
// carry only fields of their own kind, dispatch with a type switch.
type Event interface {
	fmt.Stringer
	event()
}

// +CEREG <stat>
type RegStatus uint8

const (
	RegNone      RegStatus = 0
	RegHome      RegStatus = 1
	RegSearching RegStatus = 2
	RegDenied    RegStatus = 3
	RegUnknown   RegStatus = 4
	RegRoaming   RegStatus = 5
)

func (s RegStatus) Registered() bool { return s == RegHome || s == RegRoaming }

func (s RegStatus) String() string {
	switch s {
	case RegNone:
		return "not-registered"
	case RegHome:
		return "registered-home"
	case RegSearching:
		return "searching"
	case RegDenied:
		return "denied"
	case RegUnknown:
		return "unknown"
	case RegRoaming:
		return "registered-roaming"
	}
	return fmt.Sprintf("RegStatus(%d)", uint8(s))
}

// +CSCON <mode>
type RRCMode uint8

const (
	RRCIdle      RRCMode = 0
	RRCConnected RRCMode = 1
)

func (m RRCMode) String() string {
	switch m {
	case RRCIdle:
		return "idle"
	case RRCConnected:
		return "connected"
	}
	return fmt.Sprintf("RRCMode(%d)", uint8(m))
}

type RegEvent struct {
	Status RegStatus
}

func (RegEvent) event()           {}
func (e RegEvent) String() string { return "registration status=" + e.Status.String() }

// Negotiated power saving mode parameters.
// Seconds, -1 = timer deactivated.
type PSMEvent struct {
	TAU    int
	Active int
}

func (PSMEvent) event() {}
func (e PSMEvent) String() string {
	return fmt.Sprintf("PSM update TAU=%ds active=%ds", e.TAU, e.Active)
}

// +CEDRXP access technology
const (
	ActLTEM  = 4 // E-UTRAN WB-S1
	ActNBIoT = 5 // E-UTRAN NB-S1
)

// Negotiated eDRX parameters, seconds.
type EDRXEvent struct {
	Act  int
	EDRX float64
	PTW  float64
}

func (EDRXEvent) event() {}
func (e EDRXEvent) String() string {
	return fmt.Sprintf("eDRX update act=%d edrx=%.2fs ptw=%.2fs", e.Act, e.EDRX, e.PTW)
}

type RRCEvent struct {
	Mode RRCMode
}

func (RRCEvent) event()           {}
func (e RRCEvent) String() string { return "RRC mode=" + e.Mode.String() }

type CellEvent struct {
	ID  int64 // E-UTRAN cell ID, -1 = no cell
	TAC int64 // tracking area code
}

func (CellEvent) event() {}
func (e CellEvent) String() string {
	return fmt.Sprintf("cell update id=%d tac=%d", e.ID, e.TAC)
}

type EventFunc func(Event)
