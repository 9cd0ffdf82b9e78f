package models

// UserPosts is one slot of a GroupIndex: a user id and that user's filtered,
// normalized posts in timeline order.
type UserPosts struct {
	UserID string
	Posts  []string
}

// GroupIndex maps a slot index (the position in the slice) to the user read
// into that slot. Slots are assigned at read time, start at 0 per group, and
// are never comparable across groups.
type GroupIndex []UserPosts

// IDs returns the user ids in slot order.
func (g GroupIndex) IDs() []string {
	ids := make([]string, len(g))
	for i, u := range g {
		ids[i] = u.UserID
	}
	return ids
}
