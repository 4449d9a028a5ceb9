package messages

import (
	"errors"
	"slices"
	"time"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
)

// Urgency of a broadcast.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// ErrNoDistrict is returned when a citizen profile has no district.
var ErrNoDistrict = errors.New("profile has no district")

// Message is an official broadcast to residents of an area. Empty mandal or
// village widens the audience to the whole parent.
type Message struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"sender_id"`
	SenderName  string          `json:"sender_name"`
	Department  string          `json:"department"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Urgency     Urgency         `json:"urgency"`
	District    string          `json:"district"`
	Mandal      string          `json:"mandal,omitempty"`
	Village     string          `json:"village,omitempty"`
	TargetRoles []identity.Role `json:"target_roles"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Reaches reports whether the message is addressed to someone with role living
// at the given location.
func (m Message) Reaches(role identity.Role, district, mandal, village string) bool {
	if m.District != district {
		return false
	}
	if m.Mandal != "" && m.Mandal != mandal {
		return false
	}
	if m.Village != "" && m.Village != village {
		return false
	}
	return slices.Contains(m.TargetRoles, role)
}

// BroadcastInput is what an official sends.
type BroadcastInput struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Urgency     Urgency         `json:"urgency"`
	District    string          `json:"district"`
	Mandal      string          `json:"mandal"`
	Village     string          `json:"village"`
	TargetRoles []identity.Role `json:"target_roles"`
}

// Audience selects the messages a recipient can see.
type Audience struct {
	Role     identity.Role
	District string
	Mandal   string
	Village  string
}
