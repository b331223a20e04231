package otogi

import "slices"

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
}

// InterestSet describes event selection criteria for capability negotiation.
type InterestSet struct {
	Kinds          []EventKind
	Sources        []EventSource
	RequireArticle bool
	RequireCommand bool
	CommandNames   []string
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !slices.Contains(i.Kinds, event.Kind) {
		return false
	}
	if len(i.Sources) > 0 && !sourceMatchesAny(i.Sources, event.Source) {
		return false
	}
	if i.RequireArticle && event.Article == nil {
		return false
	}
	if i.RequireCommand && event.Command == nil {
		return false
	}
	if len(i.CommandNames) > 0 {
		if event.Command == nil || !slices.Contains(i.CommandNames, event.Command.Name) {
			return false
		}
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allIncluded(filter.Kinds, i.Kinds) {
		return false
	}
	if len(i.CommandNames) > 0 && !allIncluded(filter.CommandNames, i.CommandNames) {
		return false
	}
	if i.RequireArticle && !filter.RequireArticle {
		return false
	}
	if i.RequireCommand && !filter.RequireCommand {
		return false
	}

	return true
}

// sourceMatchesAny treats empty reference fields as wildcards.
func sourceMatchesAny(refs []EventSource, source EventSource) bool {
	for _, ref := range refs {
		if ref.Platform != "" && ref.Platform != source.Platform {
			continue
		}
		if ref.ID != "" && ref.ID != source.ID {
			continue
		}

		return true
	}

	return false
}

func allIncluded[T comparable](subset, allowed []T) bool {
	if len(subset) == 0 {
		return false
	}
	for _, item := range subset {
		if !slices.Contains(allowed, item) {
			return false
		}
	}

	return true
}
