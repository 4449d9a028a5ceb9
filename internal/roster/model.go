package roster

import "errors"

// ErrInvalidCredentials is returned when no roster row matches the exact
// (name, department, employee id) triple.
var ErrInvalidCredentials = errors.New("invalid official credentials")

// Entry is an externally maintained employee record. This service never writes it.
type Entry struct {
	ID          string
	Name        string
	Department  string
	EmployeeID  string
	PhoneNumber string
	District    string
	Mandal      string
	Village     string
}

// Credentials identify an official at profile completion.
type Credentials struct {
	Name       string
	Department string
	EmployeeID string
}
