package location

import "github.com/nagarika-mitra/nagarika_mitra/internal/validation"

// Selection is a district/mandal/village choice that never holds a child
// outside its parent's derived set.
type Selection struct {
	District string `json:"district"`
	Mandal   string `json:"mandal,omitempty"`
	Village  string `json:"village,omitempty"`
}

// SetDistrict changes the district and clears the mandal and village when they
// no longer belong under it.
func (s *Selection) SetDistrict(r *Resolver, district string) {
	s.District = district
	if !r.HasMandal(district, s.Mandal) {
		s.Mandal = ""
		s.Village = ""
		return
	}
	if !r.HasVillage(district, s.Mandal, s.Village) {
		s.Village = ""
	}
}

// SetMandal changes the mandal and clears the village when it no longer belongs.
func (s *Selection) SetMandal(r *Resolver, mandal string) {
	s.Mandal = mandal
	if !r.HasVillage(s.District, mandal, s.Village) {
		s.Village = ""
	}
}

func (s *Selection) SetVillage(village string) {
	s.Village = village
}

// Validate records a violation for every level that is missing (when
// required) or not a member of its parent's derived set.
func (s Selection) Validate(r *Resolver, requireAll bool, errs *validation.Errors) {
	switch {
	case s.District == "":
		errs.Add("district", "is required")
	case !r.HasDistrict(s.District):
		errs.Add("district", "is not a known district")
	}

	switch {
	case s.Mandal == "":
		if requireAll {
			errs.Add("mandal", "is required")
		}
	case !r.HasMandal(s.District, s.Mandal):
		errs.Add("mandal", "is not in the selected district")
	}

	switch {
	case s.Village == "":
		if requireAll {
			errs.Add("village", "is required")
		}
	case s.Mandal == "":
		errs.Add("village", "requires a mandal")
	case !r.HasVillage(s.District, s.Mandal, s.Village):
		errs.Add("village", "is not in the selected mandal")
	}
}
