package form

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/goliatone/go-multiform/pkg/model"
)

// Field error messages.
const (
	MsgRequired      = "This field is required."
	MsgInteger       = "Enter a whole number."
	MsgNumber        = "Enter a number."
	MsgDate          = "Enter a valid date."
	MsgEmail         = "Enter a valid email address."
	MsgURL           = "Enter a valid URL."
	MsgSlug          = "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	MsgInvalid       = "Enter a valid value."
	msgInvalidChoice = "Select a valid choice. %s is not one of the available choices."
)

// DateLayout is the layout date values are displayed with.
const DateLayout = "2006-01-02"

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// NewValidator returns a validator with the "slug" rule registered, suitable
// for WithValidator after adding project rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

func (f *Form) cleanField(field model.Field) (any, []string) {
	name := f.HTMLName(field.Name)

	switch field.Type {
	case model.FieldTypeFile:
		headers := f.files[name]
		if len(headers) == 0 || headers[0] == nil {
			if field.Required {
				return nil, []string{MsgRequired}
			}
			return nil, nil
		}
		return headers[0], nil
	case model.FieldTypeBoolean:
		checked := checkboxValue(f.data, name)
		if field.Required && !checked {
			return nil, []string{MsgRequired}
		}
		return checked, nil
	}

	raw := strings.TrimSpace(f.data.Get(name))
	if raw == "" {
		if field.Required {
			return nil, []string{MsgRequired}
		}
		return emptyValue(field.Type), nil
	}

	value, msg := f.coerce(field, raw)
	if msg != "" {
		return nil, []string{msg}
	}
	if field.Rules != "" {
		if err := f.validate.Var(value, field.Rules); err != nil {
			return nil, ruleMessages(err)
		}
	}
	return value, nil
}

func (f *Form) coerce(field model.Field, raw string) (any, string) {
	switch field.Type {
	case model.FieldTypeInteger:
		// Decimal only: a leading zero is not an octal prefix.
		n, err := strconv.ParseInt(raw, 10, 0)
		if err != nil {
			return nil, MsgInteger
		}
		return int(n), ""
	case model.FieldTypeNumber:
		n, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, MsgNumber
		}
		return n, ""
	case model.FieldTypeDate:
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return nil, MsgDate
		}
		return t, ""
	case model.FieldTypeEmail:
		if f.validate.Var(raw, "email") != nil {
			return nil, MsgEmail
		}
	case model.FieldTypeURL:
		if f.validate.Var(raw, "url") != nil {
			return nil, MsgURL
		}
	case model.FieldTypeSlug:
		if f.validate.Var(raw, "slug") != nil {
			return nil, MsgSlug
		}
	case model.FieldTypeChoice:
		for _, choice := range field.Choices {
			if choice.Value == raw {
				return raw, ""
			}
		}
		return nil, fmt.Sprintf(msgInvalidChoice, raw)
	}
	return raw, ""
}

func ruleMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{MsgInvalid}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ruleMessage(fe))
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	param := fe.Param()
	text := fe.Kind() == reflect.String
	length := 0
	if text {
		length = utf8.RuneCountInString(fmt.Sprint(fe.Value()))
	}

	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "max", "lte":
		if text {
			return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).", param, length)
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", param)
	case "min", "gte":
		if text {
			return fmt.Sprintf("Ensure this value has at least %s characters (it has %d).", param, length)
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", param)
	case "lt":
		return fmt.Sprintf("Ensure this value is less than %s.", param)
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", param)
	case "len":
		if text {
			return fmt.Sprintf("Ensure this value has exactly %s characters (it has %d).", param, length)
		}
		return fmt.Sprintf("Ensure this value equals %s.", param)
	case "oneof":
		return fmt.Sprintf(msgInvalidChoice, fmt.Sprint(fe.Value()))
	case "email":
		return MsgEmail
	case "url", "uri", "http_url":
		return MsgURL
	case "slug":
		return MsgSlug
	default:
		return MsgInvalid
	}
}

// checkboxValue reads HTML checkbox semantics: a missing input is false and
// the usual falsy spellings are false, anything else is true.
func checkboxValue(data url.Values, name string) bool {
	values, ok := data[name]
	if !ok || len(values) == 0 {
		return false
	}
	return truthy(values[0])
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	default:
		b, err := cast.ToBoolE(v)
		return err == nil && b
	}
}

func emptyValue(t model.FieldType) any {
	switch t {
	case model.FieldTypeString, model.FieldTypeText, model.FieldTypeEmail,
		model.FieldTypeSlug, model.FieldTypeURL, model.FieldTypeChoice:
		return ""
	default:
		return nil
	}
}

func displayValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(DateLayout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(DateLayout)
	default:
		return value
	}
}
