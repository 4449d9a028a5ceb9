package location

import "context"

type memoryRepository struct {
	triples []Triple
}

// NewMemoryRepository serves a fixed reference set.
func NewMemoryRepository(triples ...Triple) Repository {
	return &memoryRepository{triples: append([]Triple(nil), triples...)}
}

func (r *memoryRepository) LoadTriples(context.Context) ([]Triple, error) {
	return append([]Triple(nil), r.triples...), nil
}

// DevTriples is a small Telangana sample used when no database is configured.
func DevTriples() []Triple {
	return []Triple{
		{"Hyderabad", "Secunderabad", "Village1"},
		{"Hyderabad", "Secunderabad", "Bowenpally"},
		{"Hyderabad", "Secunderabad", "Marredpally"},
		{"Hyderabad", "Khairatabad", "Somajiguda"},
		{"Hyderabad", "Khairatabad", "Punjagutta"},
		{"Hyderabad", "Charminar", "Shalibanda"},
		{"Warangal", "Hanamkonda", "Kazipet"},
		{"Warangal", "Hanamkonda", "Subedari"},
		{"Warangal", "Warangal", "Kashibugga"},
		{"Karimnagar", "Karimnagar", "Kothirampur"},
		{"Karimnagar", "Huzurabad", "Jammikunta"},
		{"Nizamabad", "Bodhan", "Rakasipet"},
	}
}
