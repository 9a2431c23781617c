package types

// MaxPhoneNumber is the largest phone number a resident may hold
const MaxPhoneNumber int64 = 9999999999999

// Resident lives in exactly one room. Phone numbers are unique across all
// residents.
type Resident struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name" validate:"required,min=1,max=255"`
	PhoneNumber *int64  `json:"phone_number" validate:"required,max=9999999999999"`
	Email       *string `json:"email" validate:"omitempty,max=255"`
	Room        *Room   `json:"room,omitempty" validate:"-"`
}

func (r *Resident) Kind() Kind       { return KindResident }
func (r *Resident) GetID() *int64    { return r.ID }
func (r *Resident) SetID(id int64)   { r.ID = &id }
func (r *Resident) ParentKind() Kind { return KindRoom }

func (r *Resident) ParentID() *int64 {
	if r.Room == nil {
		return nil
	}
	return r.Room.ID
}

func (r *Resident) MergeFrom(partial *Resident) {
	if partial == nil {
		return
	}
	if partial.Name != nil {
		r.Name = partial.Name
	}
	if partial.PhoneNumber != nil {
		r.PhoneNumber = partial.PhoneNumber
	}
	if partial.Email != nil {
		r.Email = partial.Email
	}
	if partial.ParentID() != nil {
		r.Room = partial.Room.Ref()
	}
}

func (r *Resident) BareParent() *Resident {
	c := *r
	c.Room = r.Room.Ref()
	return &c
}
