// Package libsystemd is a journal engine backed by libsystemd through
// go-systemd's sdjournal bindings. It needs cgo on Linux; elsewhere the
// package is empty and registers nothing.
//
// Compared to the native engine it cannot open directory fds, file fds or
// namespaces, seek by monotonic time, or enumerate field names, and
// repeated fields collapse to one value in GetAll.
package libsystemd

// Name is the engine name to put in journal.Options.Engine.
const Name = "libsystemd"
