package autoscale

import (
	"github.com/samber/lo"

	"github.com/fleetplacer/core/pkg/lease"
)

// victim is one host chosen for scale-down: its hostname (to disable the
// underlying MachineState) and its terminate identifier (to report in the
// emitted ScaleDown action).
type victim struct {
	hostname    string
	terminateID string
}

// selectBalancedVictims picks up to count hosts from candidates, balanced
// across the bucket named by balanceAttr (spec.md §4.3.1). Hosts are
// grouped by the string value of that attribute, falling back to
// "default" when absent or when balanceAttr is unset, then drained
// round-robin from the currently largest bucket -- ties broken by
// first-encountered bucket -- until count hosts are chosen.
func selectBalancedVictims(candidates []lease.Lease, count int, balanceAttr, terminateAttr string) []victim {
	if count <= 0 || len(candidates) == 0 {
		return nil
	}

	bucketKey := func(l lease.Lease) string {
		if balanceAttr == "" {
			return "default"
		}
		if v, ok := l.Attributes[balanceAttr]; ok {
			return v.AsString()
		}
		return "default"
	}

	order := lo.Uniq(lo.Map(candidates, func(l lease.Lease, _ int) string { return bucketKey(l) }))
	buckets := lo.GroupBy(candidates, bucketKey)

	selected := make([]victim, 0, count)
	for len(selected) < count {
		largest := ""
		largestSize := 0
		for _, key := range order {
			if n := len(buckets[key]); n > largestSize {
				largest = key
				largestSize = n
			}
		}
		if largestSize == 0 {
			break
		}
		l := buckets[largest][0]
		buckets[largest] = buckets[largest][1:]
		selected = append(selected, victim{
			hostname:    l.Hostname,
			terminateID: terminateIdentifier(l, terminateAttr),
		})
	}
	return selected
}

// terminateIdentifier is the value of mapAttr on l if configured and
// present, else l's hostname.
func terminateIdentifier(l lease.Lease, mapAttr string) string {
	if mapAttr != "" {
		if v, ok := l.Attributes[mapAttr]; ok {
			return v.AsString()
		}
	}
	return l.Hostname
}
