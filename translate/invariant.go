package translate

import "fmt"

// invariant panics when a host-side consistency check fails. These are
// translator bugs, never guest errors.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("translate: invariant violated: "+format, args...))
	}
}
