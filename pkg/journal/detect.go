package journal

import (
	"github.com/godbus/dbus/v5"
)

// DetectEngine picks an engine for Engine "auto": libsystemd when it is
// registered and systemd is running, otherwise the native reader.
func DetectEngine() string {
	if _, ok := engines["libsystemd"]; ok && hasSystemd() {
		return "libsystemd"
	}
	return DefaultEngine
}

// hasSystemd checks whether org.freedesktop.systemd1 has an owner on the
// system bus. Linux systems with D-Bus but another init do not.
func hasSystemd() bool {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return false
	}
	defer conn.Close()

	var owner string
	err = conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus").
		Call("org.freedesktop.DBus.GetNameOwner", 0, "org.freedesktop.systemd1").
		Store(&owner)

	return err == nil && owner != ""
}
