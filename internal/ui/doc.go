// Package ui renders terminal output for backup-vm: transient one-line
// progress during block commits and colored status markers. Everything
// degrades to plain text when stdout is not a terminal.
package ui
