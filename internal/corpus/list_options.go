package corpus

import "strings"

type listOptions struct {
	withSections   bool
	withReferences bool
	withRevisions  bool
	includeDrafts  bool
}

func parseListOptions(args ...ListOption) listOptions {
	var opts listOptions
	for _, raw := range args {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		switch token {
		case WithSections():
			opts.withSections = true
		case WithReferences():
			opts.withReferences = true
		case WithRevisions():
			opts.withRevisions = true
		case IncludeDrafts():
			opts.includeDrafts = true
		}
	}
	return opts
}
