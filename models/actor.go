package models

// Actor is either an Employee or an Administrator.
type Actor interface {
	ActorID() string
	actor()
}

type Employee struct {
	ID string
}

type Administrator struct {
	ID string
}

func (e Employee) ActorID() string      { return e.ID }
func (a Administrator) ActorID() string { return a.ID }

func (Employee) actor()      {}
func (Administrator) actor() {}

// CanActFor reports whether the actor may read or modify records owned by ownerID.
func CanActFor(a Actor, ownerID string) bool {
	switch v := a.(type) {
	case Administrator:
		return true
	case Employee:
		return v.ID != "" && v.ID == ownerID
	default:
		return false
	}
}

func IsAdministrator(a Actor) bool {
	_, ok := a.(Administrator)
	return ok
}
