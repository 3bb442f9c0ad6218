// Package snapshot creates temporary external snapshots of a libvirt
// domain's disks and merges them back once the backup is done. While a
// snapshot is active the guest writes to overlay images, leaving the
// original images stable for borg to read.
package snapshot

import (
	"os"
	"time"

	"github.com/beevik/etree"

	"github.com/virtbackup/backup-vm/internal/domain"
	"github.com/virtbackup/backup-vm/internal/errors"
	"github.com/virtbackup/backup-vm/internal/logger"
	"github.com/virtbackup/backup-vm/internal/ui"
)

// Hypervisor is the slice of hypervisor control the snapshot lifecycle
// needs. The virsh package provides the real implementation.
type Hypervisor interface {
	// Name returns the domain name.
	Name() string
	// IsActive reports whether the domain is running.
	IsActive() (bool, error)
	// FSFreeze asks the guest agent to quiesce filesystems.
	FSFreeze() error
	// FSThaw releases a previous freeze.
	FSThaw() error
	// SnapshotCreate creates a disk-only external snapshot from the
	// given domainsnapshot XML, without persisting snapshot metadata.
	SnapshotCreate(xml string) error
	// BlockCommit starts an active, shallow commit of the overlay for
	// the given guest device back into its base image.
	BlockCommit(target string) error
	// BlockJobInfo reports progress of the running block job.
	BlockJobInfo(target string) (cur, end uint64, err error)
	// BlockJobPivot completes a ready block job and switches the domain
	// back to the base image.
	BlockJobPivot(target string) error
	// UpdateDevice replaces a device definition, e.g. to point a disk
	// back at its base image after an offline commit.
	UpdateDevice(xml string) error
}

// Options adjusts snapshot behavior. The zero value freezes filesystems,
// renders no progress and logs nowhere.
type Options struct {
	// FSFreeze controls whether the guest agent is asked to quiesce
	// filesystems around snapshot creation.
	FSFreeze bool
	// Status renders transient progress; nil disables it.
	Status *ui.StatusLine
	// Log receives warnings about partial failures.
	Log logger.Logger

	// Remove deletes a merged overlay image; nil means os.Remove.
	Remove func(path string) error
	// CommitImage merges an overlay into its base while the domain is
	// offline, normally by running qemu-img commit.
	CommitImage func(path string) error
	// Sleep is the delay between block job polls and retries; nil means
	// time.Sleep.
	Sleep func(d time.Duration)
}

// commitTries is how often a commit or pivot is attempted per disk.
const commitTries = 3

// Manager owns one temporary snapshot across its lifecycle: Begin takes
// it, Commit merges it back.
type Manager struct {
	hv      Hypervisor
	disks   []*domain.Disk
	opts    Options
	created bool
}

// Begin creates the snapshot. Disks with a SnapshotPath get a qcow2
// overlay there; the rest are excluded from the snapshot. Filesystems are
// frozen around creation when the guest agent allows it.
func Begin(hv Hypervisor, disks []*domain.Disk, opts Options) (*Manager, error) {
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	if opts.Status == nil {
		opts.Status = ui.NewStatusLine(os.Stdout, false)
	}
	if opts.Remove == nil {
		opts.Remove = os.Remove
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	m := &Manager{hv: hv, disks: disks, opts: opts}

	frozen := false
	if opts.FSFreeze {
		// Freezing fails when no guest agent is installed; the snapshot
		// is still atomic, just not quiesced.
		if err := hv.FSFreeze(); err != nil {
			opts.Log.Debug("fsfreeze unavailable: %v", err)
		} else {
			frozen = true
		}
	}
	xml, err := SnapshotXML(hv.Name(), disks)
	if err == nil {
		err = hv.SnapshotCreate(xml)
	}
	if frozen {
		if thawErr := hv.FSThaw(); thawErr != nil {
			opts.Log.Warn("fsthaw failed: %v", thawErr)
		}
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSnapshot,
			"Failed to create domain snapshot",
			"Check 'virsh snapshot-create "+hv.Name()+"' and the libvirt logs")
	}
	m.created = true
	return m, nil
}

// SnapshotXML builds the domainsnapshot document for a disk-only external
// snapshot named "<domain>-tempsnap".
func SnapshotXML(domainName string, disks []*domain.Disk) (string, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("domainsnapshot")
	root.CreateElement("name").SetText(domainName + "-tempsnap")
	root.CreateElement("description").SetText(
		"Temporary snapshot used while backing up " + domainName)
	root.CreateElement("memory").CreateAttr("snapshot", "no")
	disksEl := root.CreateElement("disks")
	for _, d := range disks {
		el := disksEl.CreateElement("disk")
		if d.SnapshotPath != "" {
			el.CreateAttr("name", d.Path)
			el.CreateElement("source").CreateAttr("file", d.SnapshotPath)
			el.CreateElement("driver").CreateAttr("type", "qcow2")
		} else {
			el.CreateAttr("name", d.Target)
			el.CreateAttr("snapshot", "no")
		}
	}
	return doc.WriteToString()
}

// Commit merges the overlays back into their base images and removes
// them: via libvirt block commit while the domain runs, via qemu-img when
// it is shut off. Disks whose merge did not complete are marked Failed;
// Commit itself only errors when the snapshot was never created or the
// domain state cannot be determined.
func (m *Manager) Commit() error {
	if !m.created {
		return errors.New(errors.ErrSnapshot,
			"No snapshot to commit", "")
	}
	var pending []*domain.Disk
	for _, d := range m.disks {
		if d.SnapshotPath != "" {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	active, err := m.hv.IsActive()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSnapshot,
			"Couldn't determine domain state",
			"Check 'virsh domstate "+m.hv.Name()+"'")
	}
	if active {
		m.blockCommit(pending)
	} else {
		m.offlineCommit(pending)
	}
	m.opts.Status.Done()
	return nil
}

// Failed returns the disks whose commit did not complete.
func (m *Manager) Failed() []*domain.Disk {
	var failed []*domain.Disk
	for _, d := range m.disks {
		if d.Failed {
			failed = append(failed, d)
		}
	}
	return failed
}

// blockCommit merges overlays on a running domain. Each disk gets
// commitTries attempts; a try starts the commit, polls the block job to
// completion and pivots the domain back to the base image.
func (m *Manager) blockCommit(disks []*domain.Disk) {
	for idx, d := range disks {
		for try := 0; try < commitTries; try++ {
			d.Failed = false
			if err := m.hv.BlockCommit(d.Target); err != nil {
				m.opts.Log.Warn("Failed to start block commit for disk '%s': %v", d.Target, err)
				d.Failed = true
			}
			if !d.Failed {
				m.pollBlockJob(d, idx, len(disks))
			}

			m.opts.Status.Update("...pivoting...")
			if err := m.hv.BlockJobPivot(d.Target); err != nil {
				suffix := "retrying..."
				if try == commitTries-1 {
					suffix = "it may be in an inconsistent state"
				}
				m.opts.Log.Warn("Pivot failed for disk '%s', %s", d.Target, suffix)
				d.Failed = true
				m.opts.Sleep(5 * time.Second)
				continue
			}
			m.removeOverlay(d)
			break
		}
	}
}

func (m *Manager) pollBlockJob(d *domain.Disk, idx, total int) {
	for {
		cur, end, err := m.hv.BlockJobInfo(d.Target)
		if err != nil {
			m.opts.Log.Warn("Failed to query block jobs for disk '%s': %v", d.Target, err)
			d.Failed = true
			return
		}
		if end > 0 {
			progress := (float64(idx) + float64(cur)/float64(end)) / float64(total)
			m.opts.Status.Update("block commit progress (%s): %d%%", d.Target, int(100*progress))
		}
		if cur == end {
			return
		}
		m.opts.Sleep(time.Second)
	}
}

// offlineCommit merges overlays on a shut-off domain with qemu-img and
// restores the original image paths in the domain definition, which the
// pivot would otherwise have done.
func (m *Manager) offlineCommit(disks []*domain.Disk) {
	if m.opts.Status.Enabled() {
		m.opts.Status.Update("image commit progress: 0%%")
	} else {
		m.opts.Log.Info("committing disk images")
	}
	if m.opts.CommitImage == nil {
		m.opts.Log.Warn("Install qemu-img to commit changes offline")
		for _, d := range disks {
			d.Failed = true
		}
		return
	}
	for idx, d := range disks {
		for try := 0; try < commitTries; try++ {
			d.Failed = false
			if err := m.opts.CommitImage(d.SnapshotPath); err != nil {
				suffix := ""
				if try != commitTries-1 {
					suffix = ", retrying..."
				}
				m.opts.Log.Warn("Commit failed for disk '%s'%s", d.Target, suffix)
				d.Failed = true
				m.opts.Sleep(5 * time.Second)
				continue
			}
			xml, err := d.DeviceXML()
			if err == nil {
				err = m.hv.UpdateDevice(xml)
			}
			if err != nil {
				m.opts.Log.Warn("Device flags update failed for disk '%s'", d.Target)
				m.opts.Log.Warn("Try replacing the path manually with 'virsh edit'")
				d.Failed = true
				continue
			}
			m.removeOverlay(d)
			m.opts.Status.Update("image commit progress (%s): %d%%",
				d.Target, int(100*float64(idx+1)/float64(len(disks))))
			break
		}
	}
}

func (m *Manager) removeOverlay(d *domain.Disk) {
	if err := m.opts.Remove(d.SnapshotPath); err != nil {
		m.opts.Log.Warn("Couldn't delete snapshot image '%s', please run as root", d.SnapshotPath)
	}
}
