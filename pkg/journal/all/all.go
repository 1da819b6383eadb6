// Package all registers every built-in journal engine.
//
//	import _ "github.com/mbrock/sdreader/pkg/journal/all"
package all

import (
	_ "github.com/mbrock/sdreader/pkg/journal/libsystemd"
	_ "github.com/mbrock/sdreader/pkg/journal/native"
)
