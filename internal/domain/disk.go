// Package domain models the pieces of a libvirt domain definition that a
// backup run cares about: the guest's disks and where their storage lives.
package domain

import (
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/virtbackup/backup-vm/internal/errors"
)

// Disk holds information about a single disk attached to a domain.
type Disk struct {
	// Target is the block device name on the guest (vda, sda, ...).
	Target string
	// Type is the storage backing the disk: "file", "dev" (block), etc.
	Type string
	// Path is the location of the disk storage on the host.
	Path string
	// Format is the image format (qcow2, raw, ...); "unknown" when the
	// definition carries no driver element.
	Format string

	// SnapshotPath is the external snapshot overlay assigned by
	// PlanSnapshots; empty means the disk is not snapshotted.
	SnapshotPath string
	// Failed marks a disk whose commit did not complete cleanly.
	Failed bool

	el *etree.Element
}

// ParseDisks extracts the disks from a domain XML description. Disks
// without a source element (an empty CD drive, say) are dropped.
func ParseDisks(xmlDesc string) ([]*Disk, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlDesc); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDomain,
			"Couldn't parse the domain XML",
			"Check that 'virsh dumpxml' works for this domain")
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New(errors.ErrDomain,
			"The domain XML is empty",
			"Check that 'virsh dumpxml' works for this domain")
	}

	var disks []*Disk
	for _, el := range root.FindElements("./devices/disk") {
		d, ok := diskFromElement(el)
		if !ok {
			continue
		}
		disks = append(disks, d)
	}
	return disks, nil
}

func diskFromElement(el *etree.Element) (*Disk, bool) {
	target := el.SelectElement("target")
	if target == nil {
		return nil, false
	}
	d := &Disk{
		Target: target.SelectAttrValue("dev", ""),
		Format: "unknown",
		el:     el,
	}

	src := el.SelectElement("source")
	if src == nil || len(src.Attr) == 0 {
		// no backing storage, nothing to back up
		return nil, false
	}
	// The backing kind is encoded in the attribute name: <source
	// file=...> for images, <source dev=...> for block devices.
	d.Type = src.Attr[0].Key
	d.Path = src.Attr[0].Value

	if drv := el.SelectElement("driver"); drv != nil {
		d.Format = drv.SelectAttrValue("type", "unknown")
	}
	return d, true
}

// DeviceXML serializes the disk's original device element, e.g. for
// restoring the definition after an offline commit.
func (d *Disk) DeviceXML() (string, error) {
	if d.el == nil {
		return "", errors.New(errors.ErrDomain,
			"Disk has no backing XML element", "")
	}
	doc := etree.NewDocument()
	doc.SetRoot(d.el.Copy())
	return doc.WriteToString()
}

func (d *Disk) String() string {
	kind := "unknown type"
	switch d.Type {
	case "file":
		kind = "file"
	case "dev":
		kind = "block device"
	}
	return fmt.Sprintf("<%s (%s) (%s format)>", d.Path, kind, d.Format)
}

// Select filters disks down to the requested guest device names. An empty
// request selects every disk. Names in exclude are dropped even when
// requested. Requested names that match no disk are returned so the
// caller can report them.
func Select(disks []*Disk, requested, exclude map[string]bool) (selected []*Disk, missing []string) {
	want := make(map[string]bool, len(requested))
	for name := range requested {
		want[name] = true
	}
	for _, d := range disks {
		if exclude[d.Target] {
			delete(want, d.Target)
			continue
		}
		if len(requested) == 0 || requested[d.Target] {
			selected = append(selected, d)
			delete(want, d.Target)
		}
	}
	for name := range want {
		missing = append(missing, name)
	}
	return selected, missing
}

// PlanSnapshots assigns each file-backed disk an overlay path next to its
// image, named after the guest device. Non-file disks get no overlay and
// are left out of the snapshot.
func PlanSnapshots(disks []*Disk) {
	for _, d := range disks {
		if d.Type != "file" {
			continue
		}
		d.SnapshotPath = filepath.Join(filepath.Dir(d.Path), d.Target+"-tempsnap.qcow2")
	}
}
