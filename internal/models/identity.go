package models

// Capability is a coarse permission granted by the identity collaborator.
type Capability string

const (
	CapViewer    Capability = "viewer"
	CapModerator Capability = "moderator"
	CapAdmin     Capability = "admin"
)

// Identity is a resolved participant, as supplied by the external
// identity/auth collaborator. The core never mints or verifies credentials
// beyond checking the capability set.
type Identity struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Capabilities []Capability `json:"capabilities"`
}

// Has reports whether the identity carries the given capability.
// Admin implies every other capability.
func (i *Identity) Has(c Capability) bool {
	if i == nil {
		return false
	}
	for _, have := range i.Capabilities {
		if have == c || have == CapAdmin {
			return true
		}
	}
	return false
}
