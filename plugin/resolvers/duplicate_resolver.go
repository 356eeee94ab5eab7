// Package resolvers selects one plugin version per identifier.
package resolvers

import (
	"sort"
	"strings"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// DuplicateResolver reduces descriptors to one winner per PluginID.
type DuplicateResolver struct{}

// NewDuplicateResolver creates a new DuplicateResolver.
func NewDuplicateResolver() *DuplicateResolver {
	return &DuplicateResolver{}
}

// Resolve groups descriptors by PluginID in first-appearance order. Within a
// group the highest parsed version wins; equal versions are ordered by the
// raw version string, case-insensitively, descending. Unparsable versions rank
// as 0.0.0.0. The sort is stable so identical input yields identical output.
func (r *DuplicateResolver) Resolve(all []*entities.Descriptor) (winners, losers []*entities.Descriptor) {
	groups := make(map[string][]*entities.Descriptor)
	var order []string
	for _, d := range all {
		if d == nil {
			continue
		}
		if _, seen := groups[d.PluginID]; !seen {
			order = append(order, d.PluginID)
		}
		groups[d.PluginID] = append(groups[d.PluginID], d)
	}

	for _, id := range order {
		group := groups[id]
		if len(group) > 1 {
			sort.SliceStable(group, func(i, j int) bool {
				return ranksBefore(group[i], group[j])
			})
			losers = append(losers, group[1:]...)
		}
		winners = append(winners, group[0])
	}
	return winners, losers
}

func ranksBefore(a, b *entities.Descriptor) bool {
	if c := a.ParsedVersion().Compare(b.ParsedVersion()); c != 0 {
		return c > 0
	}
	return strings.ToUpper(a.Version) > strings.ToUpper(b.Version)
}
