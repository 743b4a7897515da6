package engine

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
	"github.com/haukened/rr-blacklist/internal/blacklist/domain"
)

// CheckPhoneRequest asks whether a phone is blacklisted.
type CheckPhoneRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// RecommendRequest proposes a phone for blacklisting on behalf of a user.
type RecommendRequest struct {
	SeanceID string `json:"seanceId"`
	Phone    string `json:"phone" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Comment  string `json:"comment"`
}

// AddToBlacklistRequest blocks a phone directly under an existing type.
type AddToBlacklistRequest struct {
	Phone    string `json:"phone" validate:"required"`
	TypeCode string `json:"typeCode" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Comment  string `json:"comment"`
}

func (r *CheckPhoneRequest) normalize() {
	r.Phone = phone.Canonical(r.Phone)
}

func (r *RecommendRequest) normalize() {
	r.SeanceID = strings.TrimSpace(r.SeanceID)
	r.Phone = phone.Canonical(r.Phone)
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *AddToBlacklistRequest) normalize() {
	r.Phone = phone.Canonical(r.Phone)
	r.TypeCode = strings.TrimSpace(r.TypeCode)
	r.UserID = strings.TrimSpace(r.UserID)
}

// requestValidator reports fields by their json names.
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateRequest runs the struct tags and converts the first failure into a
// domain.ValidationError.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return domain.Missing(fe.Field())
	}
	return domain.Invalid(fe.Field())
}
