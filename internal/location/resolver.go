// Package location derives the district → mandal → village cascade from the
// flat reference set of triples.
package location

import (
	"slices"
	"sort"
	"strings"
)

// Triple is one row of the reference set.
type Triple struct {
	District string `json:"district"`
	Mandal   string `json:"mandal"`
	Village  string `json:"village"`
}

type pair struct{ district, mandal string }

// Resolver answers cascade queries over a loaded reference set. It is
// immutable and safe for concurrent use.
type Resolver struct {
	districts []string
	mandals   map[string][]string
	villages  map[pair][]string
}

// NewResolver indexes triples. Rows with an empty district are ignored;
// empty mandal or village values contribute only their parents.
func NewResolver(triples []Triple) *Resolver {
	districts := map[string]struct{}{}
	mandals := map[string]map[string]struct{}{}
	villages := map[pair]map[string]struct{}{}

	for _, t := range triples {
		d, m, v := strings.TrimSpace(t.District), strings.TrimSpace(t.Mandal), strings.TrimSpace(t.Village)
		if d == "" {
			continue
		}
		districts[d] = struct{}{}
		if m == "" {
			continue
		}
		if mandals[d] == nil {
			mandals[d] = map[string]struct{}{}
		}
		mandals[d][m] = struct{}{}
		if v == "" {
			continue
		}
		k := pair{d, m}
		if villages[k] == nil {
			villages[k] = map[string]struct{}{}
		}
		villages[k][v] = struct{}{}
	}

	r := &Resolver{
		districts: sortedKeys(districts),
		mandals:   make(map[string][]string, len(mandals)),
		villages:  make(map[pair][]string, len(villages)),
	}
	for d, set := range mandals {
		r.mandals[d] = sortedKeys(set)
	}
	for k, set := range villages {
		r.villages[k] = sortedKeys(set)
	}
	return r
}

// Districts returns every district, sorted.
func (r *Resolver) Districts() []string {
	return slices.Clone(r.districts)
}

// MandalsOf returns the sorted mandals of district; empty for unknown districts.
func (r *Resolver) MandalsOf(district string) []string {
	if m, ok := r.mandals[district]; ok {
		return slices.Clone(m)
	}
	return []string{}
}

// VillagesOf returns the sorted villages under (district, mandal); empty when
// the pair is not in the reference set.
func (r *Resolver) VillagesOf(district, mandal string) []string {
	if v, ok := r.villages[pair{district, mandal}]; ok {
		return slices.Clone(v)
	}
	return []string{}
}

func (r *Resolver) HasDistrict(district string) bool {
	_, ok := slices.BinarySearch(r.districts, district)
	return ok
}

func (r *Resolver) HasMandal(district, mandal string) bool {
	_, ok := slices.BinarySearch(r.mandals[district], mandal)
	return ok
}

func (r *Resolver) HasVillage(district, mandal, village string) bool {
	_, ok := slices.BinarySearch(r.villages[pair{district, mandal}], village)
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
