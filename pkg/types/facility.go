package types

// Facility is the top-level record; it owns rooms
type Facility struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name" validate:"required,max=200"`
}

func (f *Facility) Kind() Kind       { return KindFacility }
func (f *Facility) GetID() *int64    { return f.ID }
func (f *Facility) SetID(id int64)   { f.ID = &id }
func (f *Facility) ParentKind() Kind { return "" }
func (f *Facility) ParentID() *int64 { return nil }

func (f *Facility) MergeFrom(partial *Facility) {
	if partial == nil {
		return
	}
	if partial.Name != nil {
		f.Name = partial.Name
	}
}

func (f *Facility) BareParent() *Facility {
	c := *f
	return &c
}

// Ref returns a reference to the facility carrying only its id
func (f *Facility) Ref() *Facility {
	if f == nil {
		return nil
	}
	return &Facility{ID: f.ID}
}
