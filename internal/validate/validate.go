// Package validate checks extracted records against their struct-tag schema
// before they are persisted.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violation is one failed constraint on one field
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Errors is every violation found on a record
type Errors []Violation

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(parts, "; "))
}

// Repairer is implemented by records that can normalize themselves before
// validation: trimming text, dropping empty list entries and the like.
type Repairer interface {
	Repair()
}

// Gate validates records. It is safe for concurrent use.
type Gate struct {
	v *validator.Validate
}

// New builds a Gate with the custom rules registered
func New() *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// Registration only fails on empty tags or nil funcs
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Gate{v: v}
}

// Validate repairs record when it implements Repairer, then checks it. record
// must be a pointer to a struct so repairs are visible to the caller. All
// violations are returned together as Errors.
func (g *Gate) Validate(record any) error {
	if r, ok := record.(Repairer); ok {
		r.Repair()
	}
	err := g.v.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("cannot validate %T: %w", record, err)
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Violation{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the leading struct name from a namespace like "SkillRecord.title"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "url", "http_url":
		return fmt.Sprintf("must be an absolute URL, got %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		return "must have at most " + fe.Param() + " entries"
	case "numeric":
		return fmt.Sprintf("must be numeric, got %q", fe.Value())
	case "uuid":
		return fmt.Sprintf("must be a UUID, got %q", fe.Value())
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
