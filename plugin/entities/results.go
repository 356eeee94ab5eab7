package entities

// LoadResult is the outcome of one module load attempt.
// Either Descriptor is set (success) or Message and Err describe the failure.
type LoadResult struct {
	Descriptor *Descriptor
	Message    string
	PluginName string
	Err        error
}

// LoadSuccess returns a successful result bound to d.
func LoadSuccess(d *Descriptor) *LoadResult {
	return &LoadResult{Descriptor: d, PluginName: d.Name}
}

// LoadFail returns a failed result.
func LoadFail(message, pluginName string, err error) *LoadResult {
	return &LoadResult{Message: message, PluginName: pluginName, Err: err}
}

// IsSuccess reports whether the load produced a bound descriptor.
func (r *LoadResult) IsSuccess() bool {
	return r != nil && r.Descriptor != nil && r.Err == nil
}

// InstallStatus is the tri-state outcome of an install attempt.
type InstallStatus int

const (
	InstallFailed InstallStatus = iota
	InstallSucceeded
	InstallRequiresUpgrade
)

func (s InstallStatus) String() string {
	switch s {
	case InstallSucceeded:
		return "succeeded"
	case InstallRequiresUpgrade:
		return "requires-upgrade"
	default:
		return "failed"
	}
}

// InstallResult is returned by InstallPlugin.
//
// RequiresUpgrade is a decision point for the caller, not an error: the
// package stays extracted in its temp slot until UpgradePlugin consumes it.
type InstallResult struct {
	Status         InstallStatus
	NewPlugin      *Descriptor
	ExistingPlugin *Descriptor
	Message        string
	Err            error
}

// InstallSuccess reports a placed and loaded plugin.
func InstallSuccess(d *Descriptor) *InstallResult {
	return &InstallResult{Status: InstallSucceeded, NewPlugin: d}
}

// InstallFail reports a failure. existing may be nil.
func InstallFail(message string, existing *Descriptor, err error) *InstallResult {
	return &InstallResult{Status: InstallFailed, Message: message, ExistingPlugin: existing, Err: err}
}

// InstallUpgradeRequired reports that the identifier is already installed at
// an older version.
func InstallUpgradeRequired(message string, incoming, existing *Descriptor) *InstallResult {
	return &InstallResult{
		Status:         InstallRequiresUpgrade,
		Message:        message,
		NewPlugin:      incoming,
		ExistingPlugin: existing,
	}
}

// Succeeded reports whether the plugin was installed.
func (r *InstallResult) Succeeded() bool {
	return r != nil && r.Status == InstallSucceeded
}
