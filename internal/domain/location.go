package domain

// Location is either a static template location (identified only by its id
// from an external data table, out of this package's scope) or a
// player-discovered custom location, which carries full descriptive data.
type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ConnectedTo []string `json:"connectedTo"`
}

// AddConnection returns l with toLocationID appended to ConnectedTo if not
// already present.
func AddConnection(l Location, toLocationID string) Location {
	for _, id := range l.ConnectedTo {
		if id == toLocationID {
			return l
		}
	}
	next := l
	next.ConnectedTo = append(append([]string{}, l.ConnectedTo...), toLocationID)
	return next
}
