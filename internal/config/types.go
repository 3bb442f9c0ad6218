package config

// Config represents the complete .backup-vm.yaml configuration file.
type Config struct {
	// Repository overrides BORG_REPO as the default repository for
	// archive-only locations.
	Repository string `yaml:"repository" mapstructure:"repository"`

	// Progress controls progress display: "auto" (tty detection),
	// "always" or "never".
	Progress string `yaml:"progress" mapstructure:"progress"`

	// FSFreeze controls whether guest filesystems are quiesced through
	// the guest agent before snapshotting.
	FSFreeze bool `yaml:"fsfreeze" mapstructure:"fsfreeze"`

	// Exclude lists devices dropped from every backup run.
	Exclude ExcludeConfig `yaml:"exclude" mapstructure:"exclude"`

	// BorgArgs are extra arguments applied to every archive location,
	// before the per-location --borg-args.
	BorgArgs []string `yaml:"borg_args" mapstructure:"borg_args"`
}

// ExcludeConfig lists guest and host devices to skip.
type ExcludeConfig struct {
	// SourceDevs are guest block device names (vda, sdb) whose disks
	// are never backed up.
	SourceDevs []string `yaml:"source_devs" mapstructure:"source_devs"`

	// TargetDevs are host paths excluded the same way.
	TargetDevs []string `yaml:"target_devs" mapstructure:"target_devs"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Progress: "auto",
		FSFreeze: true,
	}
}

// ProgressEnabled resolves the progress setting against whether stdout
// is a terminal.
func (c *Config) ProgressEnabled(tty bool) bool {
	switch c.Progress {
	case "always":
		return true
	case "never":
		return false
	default:
		return tty
	}
}
