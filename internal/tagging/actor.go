package tagging

// Actor is the identity performing an operation, as supplied by the session layer.
type Actor struct {
	UserID      string
	IsModerator bool
}

// canManage reports whether the actor may modify a record created by owner.
func (a Actor) canManage(owner string) bool {
	return a.IsModerator || (owner != "" && owner == a.UserID)
}
