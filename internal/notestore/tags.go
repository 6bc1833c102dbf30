package notestore

import "strings"

// Tag namespaces. A note is linked to an item by its id:: tag, marked for
// today by a dated cycle:: tag, and flagged by status:: tags.
const (
	TagPrefixID     = "id::"
	TagPrefixCycle  = "cycle::"
	TagPrefixDomain = "domain::"
	TagRetired      = "status::retired"
	TagOrphan       = "status::orphan"
	TagGenerated    = "status::generated"

	// TagCycleGroup removes the whole cycle:: hierarchy in one RemoveTags call.
	TagCycleGroup = "cycle"
)

// CycleTag returns the dated cycle tag for a YYYY-MM-DD label.
func CycleTag(date string) string {
	return TagPrefixCycle + date
}

// HasTag reports whether the note carries the exact tag.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ItemID returns the linked item id from the note's id:: tag, or "" when
// the note is not linked to any item.
func (n *Note) ItemID() string {
	for _, t := range n.Tags {
		if strings.HasPrefix(t, TagPrefixID) {
			return strings.TrimPrefix(t, TagPrefixID)
		}
	}
	return ""
}

// FieldValue returns the value of the named field, or "".
func (n *Note) FieldValue(name string) string {
	if f, ok := n.Fields[name]; ok {
		return f.Value
	}
	return ""
}

// BaseQuery builds the store query selecting this system's note population.
func BaseQuery(deck, noteType string) string {
	return `deck:"` + deck + `" note:"` + noteType + `"`
}
