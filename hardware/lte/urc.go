package lte

// Wire parsing of unsolicited result codes and the 3GPP binary timer
// encodings they carry. Field layout per TS 27.007, timer units per
// TS 24.008 10.5.7.3 (GPRS Timer 2) and 10.5.7.4a (GPRS Timer 3).

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	urcCEDRXP = "+CEDRXP:"
	urcCEREG  = "+CEREG:"
	urcCSCON  = "+CSCON:"
)

// ParseURC turns one modem notification line into events.
// One +CEREG line may carry registration, cell and PSM updates at once.
// Unknown notifications return nil, nil.
func ParseURC(line string) ([]Event, error) {
	switch {
	case strings.HasPrefix(line, urcCEREG):
		return parseCEREG(strings.TrimSpace(line[len(urcCEREG):]))
	case strings.HasPrefix(line, urcCSCON):
		return parseCSCON(strings.TrimSpace(line[len(urcCSCON):]))
	case strings.HasPrefix(line, urcCEDRXP):
		return parseCEDRXP(strings.TrimSpace(line[len(urcCEDRXP):]))
	}
	return nil, nil
}

// +CEREG: <stat>[,[<tac>],[<ci>],[<AcT>][,[<cause_type>],[<reject_cause>][,[<Active-Time>],[<Periodic-TAU>]]]]
func parseCEREG(args string) ([]Event, error) {
	fs := splitArgs(args)
	if len(fs) < 1 || fs[0] == "" {
		return nil, errors.Errorf("CEREG empty stat args=%s", args)
	}
	stat, err := strconv.ParseUint(fs[0], 10, 8)
	if err != nil || stat > uint64(RegRoaming) {
		return nil, errors.Errorf("CEREG invalid stat=%s", fs[0])
	}
	events := make([]Event, 0, 3)
	events = append(events, RegEvent{Status: RegStatus(stat)})

	if len(fs) >= 3 && fs[1] != "" && fs[2] != "" {
		tac, err := strconv.ParseInt(fs[1], 16, 64)
		if err != nil {
			return nil, errors.Errorf("CEREG invalid tac=%s", fs[1])
		}
		ci, err := strconv.ParseInt(fs[2], 16, 64)
		if err != nil {
			return nil, errors.Errorf("CEREG invalid ci=%s", fs[2])
		}
		// all-ones means no current serving cell
		if tac == 0xffff {
			tac = -1
		}
		if ci == 0xffffffff {
			ci = -1
		}
		events = append(events, CellEvent{ID: ci, TAC: tac})
	}

	if len(fs) >= 8 && (fs[6] != "" || fs[7] != "") {
		active, tau := -1, -1
		if fs[6] != "" {
			if active, err = decodeGPRSTimer2(fs[6]); err != nil {
				return nil, errors.Annotatef(err, "CEREG active-time=%s", fs[6])
			}
		}
		if fs[7] != "" {
			if tau, err = decodeGPRSTimer3(fs[7]); err != nil {
				return nil, errors.Annotatef(err, "CEREG periodic-tau=%s", fs[7])
			}
		}
		events = append(events, PSMEvent{TAU: tau, Active: active})
	}
	return events, nil
}

// +CSCON: <mode>
func parseCSCON(args string) ([]Event, error) {
	fs := splitArgs(args)
	mode, err := strconv.ParseUint(fs[0], 10, 8)
	if err != nil || mode > uint64(RRCConnected) {
		return nil, errors.Errorf("CSCON invalid mode=%s", args)
	}
	return []Event{RRCEvent{Mode: RRCMode(mode)}}, nil
}

// +CEDRXP: <AcT-type>[,"<Requested_eDRX>"[,"<NW-provided_eDRX>"[,"<Paging_time_window>"]]]
func parseCEDRXP(args string) ([]Event, error) {
	fs := splitArgs(args)
	act, err := strconv.ParseUint(fs[0], 10, 8)
	if err != nil {
		return nil, errors.Errorf("CEDRXP invalid act=%s", args)
	}
	e := EDRXEvent{Act: int(act)}
	if len(fs) >= 3 && fs[2] != "" {
		if e.EDRX, err = decodeEDRX(fs[2]); err != nil {
			return nil, errors.Annotatef(err, "CEDRXP edrx=%s", fs[2])
		}
	}
	if len(fs) >= 4 && fs[3] != "" {
		if e.PTW, err = decodePTW(fs[3], e.Act); err != nil {
			return nil, errors.Annotatef(err, "CEDRXP ptw=%s", fs[3])
		}
	}
	return []Event{e}, nil
}

func splitArgs(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(parts[i]), `"`)
	}
	return parts
}

func parseBits(s string, n int) (uint64, error) {
	if len(s) != n {
		return 0, errors.Errorf("timer bits expected length=%d", n)
	}
	return strconv.ParseUint(s, 2, 8)
}

// T3324. Returns seconds, -1 = deactivated.
func decodeGPRSTimer2(bits string) (int, error) {
	v, err := parseBits(bits, 8)
	if err != nil {
		return 0, err
	}
	n := int(v & 0x1f)
	switch v >> 5 {
	case 0: // 2 s
		return n * 2, nil
	case 1: // 1 min
		return n * 60, nil
	case 2: // decihours
		return n * 360, nil
	case 7:
		return -1, nil
	}
	// other units read as multiples of 1 minute
	return n * 60, nil
}

// T3412 extended. Returns seconds, -1 = deactivated.
func decodeGPRSTimer3(bits string) (int, error) {
	v, err := parseBits(bits, 8)
	if err != nil {
		return 0, err
	}
	n := int(v & 0x1f)
	switch v >> 5 {
	case 0: // 10 min
		return n * 600, nil
	case 1: // 1 h
		return n * 3600, nil
	case 2: // 10 h
		return n * 36000, nil
	case 3: // 2 s
		return n * 2, nil
	case 4: // 30 s
		return n * 30, nil
	case 5: // 1 min
		return n * 60, nil
	case 6: // 320 h
		return n * 1152000, nil
	}
	return -1, nil
}

var gprsTimer2Units = []struct {
	seconds int
	unit    uint64
}{
	{2, 0},
	{60, 1},
	{360, 2},
}

var gprsTimer3Units = []struct {
	seconds int
	unit    uint64
}{
	{2, 3},
	{30, 4},
	{60, 5},
	{600, 0},
	{3600, 1},
	{36000, 2},
	{1152000, 6},
}

// Requested values round up to the next encodable step.
func encodeGPRSTimer2(seconds int) string { return encodeGPRSTimer(seconds, gprsTimer2Units) }
func encodeGPRSTimer3(seconds int) string { return encodeGPRSTimer(seconds, gprsTimer3Units) }

func encodeGPRSTimer(seconds int, units []struct {
	seconds int
	unit    uint64
}) string {
	if seconds < 0 {
		return "11100000" // deactivated
	}
	for _, u := range units {
		n := (seconds + u.seconds - 1) / u.seconds
		if n <= 0x1f {
			return formatBits(u.unit<<5 | uint64(n))
		}
	}
	last := units[len(units)-1]
	return formatBits(last.unit<<5 | 0x1f)
}

func formatBits(v uint64) string {
	s := strconv.FormatUint(v, 2)
	return strings.Repeat("0", 8-len(s)) + s
}

var edrxSeconds = [16]float64{
	5.12, 10.24, 20.48, 40.96, 61.44, 81.92, 102.4, 122.88,
	143.36, 163.84, 327.68, 655.36, 1310.72, 2621.44, 5242.88, 10485.76,
}

func decodeEDRX(bits string) (float64, error) {
	v, err := parseBits(bits, 4)
	if err != nil {
		return 0, err
	}
	return edrxSeconds[v], nil
}

// Paging time window step is 1.28 s on LTE-M, 2.56 s on NB-IoT.
func decodePTW(bits string, act int) (float64, error) {
	v, err := parseBits(bits, 4)
	if err != nil {
		return 0, err
	}
	step := 1.28
	if act == ActNBIoT {
		step = 2.56
	}
	return float64(v+1) * step, nil
}
