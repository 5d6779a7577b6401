// Package collection derives physical table names for crawl entities.
//
// Every workspace owns its own set of four tables. The default workspace uses
// the bare base names; any other workspace suffixes them with "-<name>". Two
// fixed namespaces (common-crawl and known-data) sit outside workspace
// partitioning entirely.
package collection

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// Kind identifies a logical entity stored per workspace.
type Kind string

const (
	URLs     Kind = "urlinfo"
	Hosts    Kind = "hostinfo"
	Seeds    Kind = "seedinfo"
	Features Kind = "cfinfo"
)

// AllKinds returns the entity kinds in creation order.
func AllKinds() []Kind {
	return []Kind{URLs, Hosts, Seeds, Features}
}

// DefaultWorkspace is the workspace whose tables carry unsuffixed names.
const DefaultWorkspace = "default"

// Resolve returns the physical table name for kind within workspace.
func Resolve(kind Kind, workspace string) string {
	if workspace == "" || workspace == DefaultWorkspace {
		return string(kind)
	}
	return string(kind) + "-" + workspace
}

// Set holds the physical table names backing one storage scope. Empty names
// mark entities the scope does not carry.
type Set struct {
	URLs     string `json:"urls" yaml:"urls"`
	Hosts    string `json:"hosts" yaml:"hosts"`
	Seeds    string `json:"seeds,omitempty" yaml:"seeds,omitempty"`
	Features string `json:"features,omitempty" yaml:"features,omitempty"`
}

// ForWorkspace returns the four tables owned by the named workspace.
func ForWorkspace(name string) Set {
	return Set{
		URLs:     Resolve(URLs, name),
		Hosts:    Resolve(Hosts, name),
		Seeds:    Resolve(Seeds, name),
		Features: Resolve(Features, name),
	}
}

// Name returns the table for kind, or "" when the set does not carry it.
func (s Set) Name(kind Kind) string {
	switch kind {
	case URLs:
		return s.URLs
	case Hosts:
		return s.Hosts
	case Seeds:
		return s.Seeds
	case Features:
		return s.Features
	}
	return ""
}

// Names returns the non-empty table names in creation order.
func (s Set) Names() []string {
	var out []string
	for _, k := range AllKinds() {
		if n := s.Name(k); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var workspaceNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

// ValidateWorkspaceName reports whether name can be embedded in table and
// index identifiers.
func ValidateWorkspaceName(name string) error {
	if !workspaceNameRe.MatchString(name) {
		return eris.Errorf("invalid workspace name %q: want 1-32 letters, digits, '-' or '_'", name)
	}
	return nil
}
