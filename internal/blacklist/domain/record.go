package domain

// Record is implemented by every stored entity. WithID returns a copy of the
// record carrying the identifier assigned by the store.
type Record[T any] interface {
	Fielder
	EntityID() string
	WithID(id string) T
}

// Filterable field names shared by the collections.
const (
	FieldID          = "id"
	FieldPhone       = "phone"
	FieldCode        = "code"
	FieldName        = "name"
	FieldIsPermanent = "isPermanent"
	FieldTypeID      = "typeId"
	FieldTypeCode    = "typeCode"
	FieldUserID      = "userId"
	FieldSeanceID    = "seanceId"
	FieldIsClosed    = "isClosed"
)

// UserRef is the reference stored on records to identify the acting user.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// User is a person known to the session directory.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the reference form stored on blacklist records.
func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name}
}

func (u User) EntityID() string { return u.ID }

func (u User) WithID(id string) User {
	u.ID = id
	return u
}

func (u User) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return u.ID, true
	case FieldName:
		return u.Name, true
	default:
		return nil, false
	}
}

func userID(u *UserRef) string {
	if u == nil {
		return ""
	}
	return u.ID
}

var _ Record[User] = User{}
