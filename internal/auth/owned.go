package auth

// Owned is implemented by every record that belongs to a single account.
// Permission checks call OwnerID directly rather than probing records for
// the presence of a user field.
type Owned interface {
	OwnerID() string
}

// OwnedBy reports whether the resource belongs to the given user.
func OwnedBy(resource Owned, userID string) bool {
	return resource.OwnerID() == userID
}
