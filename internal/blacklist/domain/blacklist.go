package domain

import (
	"strings"
	"time"
)

// BlacklistType is a reusable reason category for blocking a phone number.
// BlockTime is expressed in seconds and only matters when IsPermanent is false.
type BlacklistType struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	IsPermanent bool   `json:"isPermanent"`
	BlockTime   int64  `json:"blockTime"`
}

// NewBlacklistType constructs a BlacklistType and validates its fields.
func NewBlacklistType(code, name string, isPermanent bool, blockTime int64) (BlacklistType, error) {
	t := BlacklistType{
		Code:        strings.TrimSpace(code),
		Name:        strings.TrimSpace(name),
		IsPermanent: isPermanent,
		BlockTime:   blockTime,
	}
	if err := t.Validate(); err != nil {
		return BlacklistType{}, err
	}
	return t, nil
}

func (t BlacklistType) Validate() error {
	if t.Code == "" {
		return Missing(FieldCode)
	}
	if t.Name == "" {
		return Missing(FieldName)
	}
	if t.BlockTime < 0 {
		return Invalid("blockTime")
	}
	return nil
}

// BlockDuration returns BlockTime as a time.Duration.
func (t BlacklistType) BlockDuration() time.Duration {
	return time.Duration(t.BlockTime) * time.Second
}

func (t BlacklistType) EntityID() string { return t.ID }

func (t BlacklistType) WithID(id string) BlacklistType {
	t.ID = id
	return t
}

func (t BlacklistType) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return t.ID, true
	case FieldCode:
		return t.Code, true
	case FieldName:
		return t.Name, true
	case FieldIsPermanent:
		return t.IsPermanent, true
	case "blockTime":
		return t.BlockTime, true
	default:
		return nil, false
	}
}

// BlacklistEntry is an active block record for a phone number.
type BlacklistEntry struct {
	ID         string    `json:"id"`
	Phone      string    `json:"phone"`
	TypeID     string    `json:"typeId"`
	TypeCode   string    `json:"typeCode"`
	User       *UserRef  `json:"user,omitempty"`
	InsertedAt time.Time `json:"insertTimestamp"`
	Comment    string    `json:"comment,omitempty"`
}

// Validate enforces the creation invariant: a phone, a resolvable type and an
// acting user.
func (e BlacklistEntry) Validate() error {
	if e.Phone == "" {
		return Missing(FieldPhone)
	}
	if e.TypeID == "" || e.TypeCode == "" {
		return Missing("type")
	}
	if e.User == nil || e.User.ID == "" {
		return Missing("user")
	}
	if e.InsertedAt.IsZero() {
		return Missing("insertTimestamp")
	}
	return nil
}

// Elapsed returns how long the entry has been active at now.
func (e BlacklistEntry) Elapsed(now time.Time) time.Duration {
	return now.Sub(e.InsertedAt)
}

func (e BlacklistEntry) EntityID() string { return e.ID }

func (e BlacklistEntry) WithID(id string) BlacklistEntry {
	e.ID = id
	return e
}

func (e BlacklistEntry) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return e.ID, true
	case FieldPhone:
		return e.Phone, true
	case FieldTypeID:
		return e.TypeID, true
	case FieldTypeCode:
		return e.TypeCode, true
	case FieldUserID:
		return userID(e.User), true
	default:
		return nil, false
	}
}

// RecommendationEntry proposes a phone number for blacklisting. Open entries
// (IsClosed == false) count toward promotion.
type RecommendationEntry struct {
	ID         string    `json:"id"`
	SeanceID   string    `json:"seanceId"`
	Phone      string    `json:"phone"`
	User       *UserRef  `json:"user,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	InsertedAt time.Time `json:"insertTimestamp"`
	IsClosed   bool      `json:"isClosed"`
}

// CommentSeparator joins audit comments appended when a recommendation is closed.
const CommentSeparator = " -> "

// Close marks the recommendation processed. A non-empty note is appended to
// the existing comment rather than replacing it.
func (r *RecommendationEntry) Close(note string) {
	r.IsClosed = true
	if note == "" {
		return
	}
	// no leading separator on an empty comment
	if r.Comment == "" {
		r.Comment = note
		return
	}
	r.Comment = r.Comment + CommentSeparator + note
}

func (r RecommendationEntry) EntityID() string { return r.ID }

func (r RecommendationEntry) WithID(id string) RecommendationEntry {
	r.ID = id
	return r
}

func (r RecommendationEntry) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldSeanceID:
		return r.SeanceID, true
	case FieldPhone:
		return r.Phone, true
	case FieldUserID:
		return userID(r.User), true
	case FieldIsClosed:
		return r.IsClosed, true
	default:
		return nil, false
	}
}

var (
	_ Record[BlacklistType]       = BlacklistType{}
	_ Record[BlacklistEntry]      = BlacklistEntry{}
	_ Record[RecommendationEntry] = RecommendationEntry{}
)
