package core

import (
	"regexp"
	"strings"
)

// nonWord is the class of runes allowed to touch a topic on either side.
const nonWord = `[^\p{L}\p{N}_]`

// MatchOptions controls how topic lists are compiled.
type MatchOptions struct {
	CaseSensitive bool
}

// RoomSpec is the raw definition of a room before compilation.
type RoomSpec struct {
	ID    string
	Label string
	// RawTopics holds one topic per line.
	RawTopics string
}

// Room is an immutable topic room.
type Room struct {
	ID      string
	Label   string
	Topics  []string
	matcher *regexp.Regexp
}

// Matches reports whether text contains a whole-word occurrence of any topic.
func (r *Room) Matches(text string) bool {
	return r.matcher.MatchString(text)
}

// Pattern returns the compiled matcher source.
func (r *Room) Pattern() string {
	return r.matcher.String()
}

// Registry is the read-only set of rooms built at startup.
type Registry struct {
	rooms map[string]*Room
	order []*Room
}

// BuildRegistry compiles every spec into a Room. Room ids must be unique and
// every topic list must contain at least one non-blank line.
func BuildRegistry(specs []RoomSpec, opts MatchOptions) (*Registry, error) {
	if len(specs) == 0 {
		return nil, configError(nil, "no rooms configured")
	}

	reg := &Registry{
		rooms: make(map[string]*Room, len(specs)),
		order: make([]*Room, 0, len(specs)),
	}
	for _, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return nil, configError(nil, "room id is required")
		}
		if _, exists := reg.rooms[id]; exists {
			return nil, configError(nil, "duplicate room id %q", id)
		}

		topics := ParseTopics(spec.RawTopics)
		if len(topics) == 0 {
			return nil, configError(nil, "room %q has an empty topic list", id)
		}

		matcher, err := compileTopics(topics, opts)
		if err != nil {
			return nil, configError(err, "room %q has an invalid topic pattern", id)
		}

		label := spec.Label
		if label == "" {
			label = id
		}
		room := &Room{ID: id, Label: label, Topics: topics, matcher: matcher}
		reg.rooms[id] = room
		reg.order = append(reg.order, room)
	}
	return reg, nil
}

// ParseTopics splits newline separated topic text, trimming each line and
// skipping blanks.
func ParseTopics(raw string) []string {
	lines := strings.Split(raw, "\n")
	topics := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		topics = append(topics, line)
	}
	return topics
}

func compileTopics(topics []string, opts MatchOptions) (*regexp.Regexp, error) {
	alts := make([]string, len(topics))
	for i, topic := range topics {
		alts[i] = regexp.QuoteMeta(topic)
	}

	var b strings.Builder
	if !opts.CaseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString(`(?:^|` + nonWord + `)(?:`)
	b.WriteString(strings.Join(alts, "|"))
	b.WriteString(`)(?:$|` + nonWord + `)`)
	return regexp.Compile(b.String())
}

// Lookup returns the room registered under id.
func (r *Registry) Lookup(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Rooms returns rooms in registration order.
func (r *Registry) Rooms() []*Room {
	out := make([]*Room, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	return len(r.order)
}

// TrackTerms returns the union of all topics, first occurrence wins.
func (r *Registry) TrackTerms() []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, room := range r.order {
		for _, topic := range room.Topics {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			terms = append(terms, topic)
		}
	}
	return terms
}
