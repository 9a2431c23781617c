package types

// Room belongs to exactly one facility and holds residents
type Room struct {
	ID         *int64    `json:"id"`
	RoomNumber *int      `json:"room_number" validate:"required,max=10000"`
	Facility   *Facility `json:"facility,omitempty" validate:"-"`
}

func (r *Room) Kind() Kind       { return KindRoom }
func (r *Room) GetID() *int64    { return r.ID }
func (r *Room) SetID(id int64)   { r.ID = &id }
func (r *Room) ParentKind() Kind { return KindFacility }

func (r *Room) ParentID() *int64 {
	if r.Facility == nil {
		return nil
	}
	return r.Facility.ID
}

// MergeFrom applies the non-nil fields of partial. The facility reference is
// replaced only when partial carries a facility id.
func (r *Room) MergeFrom(partial *Room) {
	if partial == nil {
		return
	}
	if partial.RoomNumber != nil {
		r.RoomNumber = partial.RoomNumber
	}
	if partial.ParentID() != nil {
		r.Facility = partial.Facility.Ref()
	}
}

func (r *Room) BareParent() *Room {
	c := *r
	c.Facility = r.Facility.Ref()
	return &c
}

// Ref returns a reference to the room carrying only its id
func (r *Room) Ref() *Room {
	if r == nil {
		return nil
	}
	return &Room{ID: r.ID}
}

// Embedded returns a copy suitable for embedding in a resident: the room's
// own fields without its facility.
func (r *Room) Embedded() *Room {
	if r == nil {
		return nil
	}
	return &Room{ID: r.ID, RoomNumber: r.RoomNumber}
}
