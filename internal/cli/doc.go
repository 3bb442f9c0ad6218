// Package cli implements the backup-vm and borg-multi command-line
// interfaces.
//
// Both binaries are thin Cobra roots with flag parsing disabled: the
// argument grammar (archive locations, the --borg-args pass-through
// capture, positional domain and disk names) cannot be expressed as
// ordinary flags, so the raw argv is handed to the args package and the
// typed outcome decides whether to print help, print the version, fail
// with usage, or run.
//
// backup-vm snapshots a libvirt domain's disks, archives the stable base
// images with borg, and merges the snapshot back. borg-multi runs one
// borg subcommand against several repositories in a single invocation.
package cli
