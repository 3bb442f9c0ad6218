// Package virsh drives a libvirt domain through the virsh command line
// tool. It implements the snapshot.Hypervisor interface without linking
// against libvirt.
package virsh

import (
	"os"
	"strconv"
	"strings"

	"github.com/virtbackup/backup-vm/internal/errors"
	"github.com/virtbackup/backup-vm/internal/exec"
	"github.com/virtbackup/backup-vm/internal/logger"
)

// Binary is the virsh executable name.
const Binary = "virsh"

// Domain is a handle on one libvirt domain.
type Domain struct {
	name string
	log  logger.Logger
}

// Open looks up a domain by name. It fails when the domain does not
// exist or libvirt is unreachable.
func Open(name string, log logger.Logger) (*Domain, error) {
	if log == nil {
		log = logger.Noop()
	}
	if _, err := exec.Capture(Binary, "dominfo", name); err != nil {
		if exec.IsNotFound(err) {
			return nil, errors.WrapWithCode(err, errors.ErrDomain,
				"virsh is not installed",
				"Install the libvirt client tools.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrDomain,
			"Couldn't find domain '"+name+"'",
			"Check 'virsh list --all' for the exact name.")
	}
	return &Domain{name: name, log: log}, nil
}

// Name returns the domain name.
func (d *Domain) Name() string { return d.name }

// XMLDesc returns the domain's XML description.
func (d *Domain) XMLDesc() (string, error) {
	xml, err := exec.Capture(Binary, "dumpxml", d.name)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrDomain,
			"Couldn't dump XML for domain '"+d.name+"'", "")
	}
	return xml, nil
}

// IsActive reports whether the domain is running.
func (d *Domain) IsActive() (bool, error) {
	state, err := exec.Capture(Binary, "domstate", d.name)
	if err != nil {
		return false, err
	}
	return state == "running" || state == "paused", nil
}

// FSFreeze asks the guest agent to quiesce filesystems. Fails when no
// agent is installed in the guest.
func (d *Domain) FSFreeze() error {
	return exec.Quiet(Binary, "domfsfreeze", d.name)
}

// FSThaw releases a previous freeze.
func (d *Domain) FSThaw() error {
	return exec.Quiet(Binary, "domfsthaw", d.name)
}

// SnapshotCreate creates a disk-only external snapshot from the given
// domainsnapshot XML. No snapshot metadata is kept, so the overlays can
// be merged back without libvirt tracking them.
func (d *Domain) SnapshotCreate(xml string) error {
	file, err := writeTemp("snapshot-*.xml", xml)
	if err != nil {
		return err
	}
	defer os.Remove(file)
	return exec.Quiet(Binary, "snapshot-create", d.name,
		"--xmlfile", file, "--no-metadata", "--atomic", "--disk-only")
}

// BlockCommit starts an active, shallow commit of the overlay for the
// given guest device back into its base image.
func (d *Domain) BlockCommit(target string) error {
	return exec.Quiet(Binary, "blockcommit", d.name, target,
		"--active", "--shallow")
}

// BlockJobInfo reports progress of the block job running on target.
func (d *Domain) BlockJobInfo(target string) (cur, end uint64, err error) {
	out, err := exec.Capture(Binary, "blockjob", d.name, target, "--info")
	if err != nil {
		return 0, 0, err
	}
	return parseBlockJob(out)
}

// BlockJobPivot completes a ready block job, switching the domain back
// to the base image.
func (d *Domain) BlockJobPivot(target string) error {
	return exec.Quiet(Binary, "blockjob", d.name, target, "--pivot")
}

// UpdateDevice replaces a device definition in the persistent config.
func (d *Domain) UpdateDevice(xml string) error {
	file, err := writeTemp("device-*.xml", xml)
	if err != nil {
		return err
	}
	defer os.Remove(file)
	return exec.Quiet(Binary, "update-device", d.name,
		"--file", file, "--persistent")
}

// parseBlockJob extracts progress from virsh blockjob output, which
// renders a percentage like "Active Block Commit: [ 52 %]". A job at its
// end may report no output at all; that counts as complete.
func parseBlockJob(out string) (cur, end uint64, err error) {
	out = strings.TrimSpace(out)
	if out == "" || strings.HasPrefix(out, "No current block job") {
		return 100, 100, nil
	}
	open := strings.IndexByte(out, '[')
	pct := strings.IndexByte(out, '%')
	if open < 0 || pct < open {
		return 0, 0, errors.New(errors.ErrSnapshot,
			"Unexpected blockjob output: "+out, "")
	}
	n, convErr := strconv.ParseUint(strings.TrimSpace(out[open+1:pct]), 10, 64)
	if convErr != nil {
		return 0, 0, errors.New(errors.ErrSnapshot,
			"Unexpected blockjob output: "+out, "")
	}
	return n, 100, nil
}

func writeTemp(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't create a temporary file", "")
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't write a temporary file", "")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't write a temporary file", "")
	}
	return f.Name(), nil
}
