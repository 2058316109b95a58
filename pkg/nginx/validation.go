package nginx

import (
	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
)

// ValidateDiscoveryData checks the construction input handed in by the
// manager. local_id is externally assigned and required; process facts are
// required snapshots.
func ValidateDiscoveryData(data DiscoveryData) error {
	if data.LocalID == "" {
		return errors.NewValidationError("local_id is required", nil)
	}
	if data.Pid <= 0 {
		return errors.NewValidationError("pid must be positive", nil).WithContext("local_id", data.LocalID)
	}
	if data.Version == "" {
		return errors.NewValidationError("version is required", nil).WithContext("local_id", data.LocalID)
	}
	if data.Workers < 0 {
		return errors.NewValidationError("workers cannot be negative", nil).WithContext("local_id", data.LocalID)
	}
	if data.Prefix == "" {
		return errors.NewValidationError("prefix is required", nil).WithContext("local_id", data.LocalID)
	}
	if data.BinPath == "" {
		return errors.NewValidationError("bin_path is required", nil).WithContext("local_id", data.LocalID)
	}
	if data.ConfPath == "" {
		return errors.NewValidationError("conf_path is required", nil).WithContext("local_id", data.LocalID)
	}
	return nil
}
