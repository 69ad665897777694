package core

// Classify returns the ids of every room whose topics match ev.Text, in
// registration order.
func Classify(ev Event, reg *Registry) []string {
	var ids []string
	for _, room := range reg.order {
		if room.Matches(ev.Text) {
			ids = append(ids, room.ID)
		}
	}
	return ids
}
