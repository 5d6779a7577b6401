package collection

import "fmt"

// Namespace selects which family of tables a store operates on.
type Namespace string

const (
	// CrawlData is partitioned per workspace.
	CrawlData Namespace = "crawl-data"
	// CCCrawlData holds common-crawl imports.
	CCCrawlData Namespace = "cc-crawl-data"
	// KnownData holds bulk-ingested known URLs.
	KnownData Namespace = "known-data"
)

// InvalidNamespaceError is returned for an unrecognized namespace mode.
type InvalidNamespaceError struct {
	Mode string
}

func (e *InvalidNamespaceError) Error() string {
	return fmt.Sprintf("invalid namespace %q: want %s, %s or %s", e.Mode, CrawlData, CCCrawlData, KnownData)
}

// ParseNamespace converts a mode string into a Namespace. The empty string
// means CrawlData.
func ParseNamespace(s string) (Namespace, error) {
	switch Namespace(s) {
	case "", CrawlData:
		return CrawlData, nil
	case CCCrawlData, KnownData:
		return Namespace(s), nil
	}
	return "", &InvalidNamespaceError{Mode: s}
}

// Partitioned reports whether table names depend on the selected workspace.
func (ns Namespace) Partitioned() bool {
	return ns == CrawlData
}

// Fixed returns the tables of a namespace that bypasses workspace suffixing.
// Fixed namespaces carry no seed or feature tables.
func Fixed(ns Namespace) (Set, error) {
	switch ns {
	case CCCrawlData:
		return Set{URLs: "cc-urlinfo", Hosts: "cc-hostinfo"}, nil
	case KnownData:
		return Set{URLs: "known-urlsinfo", Hosts: "known-hostsinfo"}, nil
	}
	return Set{}, &InvalidNamespaceError{Mode: string(ns)}
}

// For returns the tables backing ns. The workspace name only matters for
// CrawlData.
func For(ns Namespace, workspace string) (Set, error) {
	if ns == CrawlData {
		return ForWorkspace(workspace), nil
	}
	return Fixed(ns)
}
