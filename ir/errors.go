package ir

import "fmt"

// UnsupportedFeatureError is raised for constructs spec.md explicitly keeps
// out of scope: floating point (never represented at all, so this is really
// for the two remaining cases), a block/loop with input arity > 0 or output
// arity > 1, or a call with more than one return value.
type UnsupportedFeatureError struct {
	Feature string
}

func (e UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("ir: unsupported feature: %s", e.Feature)
}
