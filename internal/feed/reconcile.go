package feed

import (
	"sort"

	"github.com/daszybak/polymarket_dashboard/pkg/hashset"
)

// Diff computes the minimal subscription delta between what is subscribed and
// what the current selection wants. The two results are disjoint by
// construction; an instrument present in both sets appears in neither.
func Diff(subscribed, desired hashset.Set[string]) (toAdd, toRemove []string) {
	toAdd = desired.Remove(subscribed).AsSlice()
	toRemove = subscribed.Remove(desired).AsSlice()

	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
