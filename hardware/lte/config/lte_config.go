// Separate package is workaround to import cycles.
package lte_config

type Config struct { //nolint:maligned
	Device            string `hcl:"device"`
	Baud              int    `hcl:"baud"`
	CommandTimeoutSec int    `hcl:"command_timeout_sec"`
	LogDebug          bool   `hcl:"log_debug"`

	EdrxAct      int    `hcl:"edrx_act"` // 4=LTE-M 5=NB-IoT
	EdrxEnable   bool   `hcl:"edrx_enable"`
	EdrxValue    string `hcl:"edrx_value"` // 4 bit string, see 3GPP TS 27.007 +CEDRXS
	PsmActiveSec int    `hcl:"psm_active_sec"`
	PsmEnable    bool   `hcl:"psm_enable"`
	PsmTauSec    int    `hcl:"psm_tau_sec"`
	RaiEnable    bool   `hcl:"rai_enable"`

	// Optional modem power key pulse before open.
	PowerChip    string `hcl:"power_chip"`
	PowerPin     string `hcl:"power_pin"`
	PowerPulseMs int    `hcl:"power_pulse_ms"`
}
