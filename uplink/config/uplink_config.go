// Separate package is workaround to import cycles.
package uplink_config

type Config struct { //nolint:maligned
	LogDebug          bool   `hcl:"log_debug"`
	ServerAddress     string `hcl:"server_address"`
	ServerPort        int    `hcl:"server_port"`
	UploadIntervalSec int    `hcl:"upload_interval_sec"`
	UploadSizeBytes   int    `hcl:"upload_size_bytes"`
}
