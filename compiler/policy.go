package compiler

import (
	"fmt"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// ReferencePolicy holds the nesting thresholds at which a named type stops
// being expanded and becomes a reference node. The depth counted against a
// threshold is the number of named types being expanded on the current path.
type ReferencePolicy struct {
	Roots  int // queries, mutations, subscriptions and action return slots
	Models int
	Inputs int
	Args   int // any position below a field's arguments or an action input slot
}

// DefaultPolicy returns the thresholds used when none are configured
func DefaultPolicy() ReferencePolicy {
	return ReferencePolicy{Roots: 1, Models: 2, Inputs: 2, Args: 1}
}

// Threshold returns the threshold for a group, or the Args threshold when
// walking an arguments subtree
func (p ReferencePolicy) Threshold(g metadata.Group, inArgs bool) int {
	if inArgs {
		return p.Args
	}
	switch g {
	case metadata.GroupModels:
		return p.Models
	case metadata.GroupInputs:
		return p.Inputs
	default:
		return p.Roots
	}
}

// Validate rejects thresholds below one
func (p ReferencePolicy) Validate() error {
	if p.Roots < 1 || p.Models < 1 || p.Inputs < 1 || p.Args < 1 {
		return fmt.Errorf("reference thresholds must be at least 1, got %s", p)
	}
	return nil
}

func (p ReferencePolicy) String() string {
	return fmt.Sprintf("roots=%d models=%d inputs=%d args=%d", p.Roots, p.Models, p.Inputs, p.Args)
}
