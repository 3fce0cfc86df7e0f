package assert

import "fmt"

// Assert panics with msg when the condition does not hold. Used for
// startup-time wiring that must not proceed in a broken state.
func Assert(condition bool, msg string, other ...any) {
	if !condition {
		if len(other) > 0 {
			panic(fmt.Sprintf("%s: %v", msg, other))
		}
		panic(msg)
	}
}

func AssertNil(value any, msg string, other ...any) {
	Assert(value == nil, msg, other...)
}
