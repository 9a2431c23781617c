package types

// Kind identifies one of the record kinds managed by the service
type Kind string

const (
	KindFacility Kind = "facility"
	KindRoom     Kind = "room"
	KindResident Kind = "resident"
)

// Kinds lists every record kind in parent-first order
var Kinds = []Kind{KindFacility, KindRoom, KindResident}

// Plural returns the collection path segment for the kind (e.g. "facilities")
func (k Kind) Plural() string {
	switch k {
	case KindFacility:
		return "facilities"
	case KindRoom:
		return "rooms"
	case KindResident:
		return "residents"
	}
	return string(k) + "s"
}

// Record is implemented by every entity persisted by the record store and
// mirrored into the search index.
type Record interface {
	Kind() Kind
	GetID() *int64
	SetID(id int64)

	// ParentKind is empty for kinds without a parent reference
	ParentKind() Kind
	ParentID() *int64
}

// Entity is a Record that knows how to merge a partial copy of itself.
// T is the pointer type implementing the interface (e.g. *Room).
type Entity[T any] interface {
	Record

	// MergeFrom overwrites every field that is non-nil in partial
	MergeFrom(partial T)

	// BareParent returns a copy whose parent reference only carries the id
	BareParent() T
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
