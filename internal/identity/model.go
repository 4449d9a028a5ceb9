package identity

import (
	"errors"
	"fmt"
	"time"
)

// Role discriminates the Identity variants. It is derived from the concrete
// type and cannot be changed on an existing value.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleOfficial Role = "official"
)

// Gender is optional on citizen profiles.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is empty or one of the known values.
func (g Gender) Valid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// ErrUnknownRole is returned when decoding an identity with an unexpected role.
var ErrUnknownRole = errors.New("unknown identity role")

// Identity is the authenticated principal: exactly one of *Citizen or
// *Official. Callers match on the concrete type.
type Identity interface {
	Role() Role
	Summary() Summary
	isIdentity()
}

// Summary is the role-independent view used for logging and routing.
type Summary struct {
	ID          string
	Name        string
	PhoneNumber string
	District    string
	Mandal      string
	Village     string
}

// Citizen is a self-registered resident bound to a backend auth user.
type Citizen struct {
	ID          string
	AuthUserID  string
	Name        string
	Age         int
	Gender      Gender
	PhoneNumber string
	Locality    string
	District    string
	Mandal      string
	Village     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (*Citizen) Role() Role { return RoleCitizen }

func (c *Citizen) Summary() Summary {
	return Summary{ID: c.ID, Name: c.Name, PhoneNumber: c.PhoneNumber, District: c.District, Mandal: c.Mandal, Village: c.Village}
}

func (*Citizen) isIdentity() {}

// Official is synthesized from a roster entry; officials are never
// self-registered and have no users row.
type Official struct {
	ID          string
	Name        string
	Department  string
	EmployeeID  string
	PhoneNumber string
	District    string
	Mandal      string
	Village     string
}

func (*Official) Role() Role { return RoleOfficial }

func (o *Official) Summary() Summary {
	return Summary{ID: o.ID, Name: o.Name, PhoneNumber: o.PhoneNumber, District: o.District, Mandal: o.Mandal, Village: o.Village}
}

func (*Official) isIdentity() {}

// Document is the flat wire and cache representation of an Identity.
type Document struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age,omitempty"`
	Gender      Gender `json:"gender,omitempty"`
	Locality    string `json:"locality,omitempty"`
	Department  string `json:"department,omitempty"`
	EmployeeID  string `json:"employee_id,omitempty"`
	District    string `json:"district,omitempty"`
	Mandal      string `json:"mandal,omitempty"`
	Village     string `json:"village,omitempty"`
	AuthUserID  string `json:"auth_user_id,omitempty"`
}

// ToDocument flattens id.
func ToDocument(id Identity) (Document, error) {
	switch v := id.(type) {
	case *Citizen:
		return Document{
			ID: v.ID, Role: RoleCitizen, Name: v.Name, PhoneNumber: v.PhoneNumber,
			Age: v.Age, Gender: v.Gender, Locality: v.Locality,
			District: v.District, Mandal: v.Mandal, Village: v.Village, AuthUserID: v.AuthUserID,
		}, nil
	case *Official:
		return Document{
			ID: v.ID, Role: RoleOfficial, Name: v.Name, PhoneNumber: v.PhoneNumber,
			Department: v.Department, EmployeeID: v.EmployeeID,
			District: v.District, Mandal: v.Mandal, Village: v.Village,
		}, nil
	default:
		return Document{}, fmt.Errorf("%w: %T", ErrUnknownRole, id)
	}
}

// FromDocument rebuilds the Identity variant named by d.Role.
func FromDocument(d Document) (Identity, error) {
	switch d.Role {
	case RoleCitizen:
		return &Citizen{
			ID: d.ID, AuthUserID: d.AuthUserID, Name: d.Name, Age: d.Age, Gender: d.Gender,
			PhoneNumber: d.PhoneNumber, Locality: d.Locality,
			District: d.District, Mandal: d.Mandal, Village: d.Village,
		}, nil
	case RoleOfficial:
		return &Official{
			ID: d.ID, Name: d.Name, Department: d.Department, EmployeeID: d.EmployeeID,
			PhoneNumber: d.PhoneNumber, District: d.District, Mandal: d.Mandal, Village: d.Village,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, d.Role)
	}
}
