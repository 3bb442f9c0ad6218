package args

import "fmt"

// DomainBackupParser interprets backup-vm arguments: a libvirt domain name
// followed by zero or more disk names, interleaved with archive locations
// and pass-through captures handled by the shared machine.
type DomainBackupParser struct {
	Domain string
	// Disks restricts the backup to the named block devices; empty means
	// all disks.
	Disks map[string]bool

	m         *Machine
	domainSet bool
}

// NewDomainBackupParser creates a backup-vm parser.
func NewDomainBackupParser(opts Options) *DomainBackupParser {
	p := &DomainBackupParser{Disks: make(map[string]bool)}
	p.m = newMachine(opts)
	p.m.ext = p
	return p
}

// Parse interprets argv (argv[0] being the program name).
func (p *DomainBackupParser) Parse(argv []string) Outcome {
	p.m.Session.Prog = progName(argv, "backup-vm")
	if len(argv) == 0 {
		return p.m.parseArgs(nil)
	}
	return p.m.parseArgs(argv[1:])
}

// Session exposes the parse session after a successful run.
func (p *DomainBackupParser) Session() *Session {
	return p.m.Session
}

// NeedsArchive is true: every accepted location must carry an archive.
func (p *DomainBackupParser) NeedsArchive() bool { return true }

// Claim declines: positional claiming happens after the base classifier.
func (p *DomainBackupParser) Claim(string) bool { return false }

// Fallback claims the domain first, then disk names. It never declines, so
// backup-vm has no unrecognized-argument errors of its own.
func (p *DomainBackupParser) Fallback(arg string) bool {
	if !p.domainSet {
		p.Domain = arg
		p.domainSet = true
	} else {
		p.Disks[arg] = true
	}
	return true
}

// Validate requires the domain positional.
func (p *DomainBackupParser) Validate() string {
	if !p.domainSet {
		return "the following arguments are required: domain, archive"
	}
	return ""
}

// Usage returns the short synopsis.
func (p *DomainBackupParser) Usage(prog string) string {
	return fmt.Sprintf(`usage: %s [-hpv] domain [disk [disk ...]] archive
    [--borg-args ...] [archive [--borg-args ...] ...]
`, prog)
}

// Help returns the full help text.
func (p *DomainBackupParser) Help(prog string) string {
	return p.Usage(prog) + `
Back up a libvirt-based VM using borg.

positional arguments:
  domain                libvirt domain to back up
  disk                  a domain block device to back up (default: all disks)
  archive               a borg archive path (same format as borg create)

optional arguments:
  -h, --help            show this help message and exit
  -v, --version         show program version and exit
  --exclude-source-dev  exclude source device from being backed up, can be repeated
  --exclude-target-dev  exclude target device from being backed up, can be repeated
  -p, --progress        force progress display even if stdout isn't a tty
  --borg-args ...       extra arguments passed straight to borg
`
}
