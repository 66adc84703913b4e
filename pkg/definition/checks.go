package definition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/goliatone/go-multiform/pkg/form"
)

// ErrUnknownOperator reports a check with an unsupported comparison.
var ErrUnknownOperator = errors.New("definition: unknown check operator")

// Check compares two cleaned field values. Checks are skipped while either
// value is missing, since the field already carries its own error.
type Check struct {
	Field   string `json:"field" yaml:"field"`
	Op      string `json:"op" yaml:"op"`
	Other   string `json:"other" yaml:"other"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	// Attach names the field the message is reported on. Empty reports it
	// as a non-field error.
	Attach string `json:"attach,omitempty" yaml:"attach,omitempty"`
}

var operators = map[string]struct {
	phrase string
	holds  func(int) bool
}{
	"lt":  {"less than", func(c int) bool { return c < 0 }},
	"lte": {"less than or equal to", func(c int) bool { return c <= 0 }},
	"gt":  {"greater than", func(c int) bool { return c > 0 }},
	"gte": {"greater than or equal to", func(c int) bool { return c >= 0 }},
	"eq":  {"equal to", func(c int) bool { return c == 0 }},
	"ne":  {"different from", func(c int) bool { return c != 0 }},
}

// Validate reports malformed checks.
func (c Check) Validate() error {
	if strings.TrimSpace(c.Field) == "" || strings.TrimSpace(c.Other) == "" {
		return fmt.Errorf("definition: check needs both field and other")
	}
	if _, ok := operators[strings.ToLower(strings.TrimSpace(c.Op))]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
	}
	return nil
}

// CleanFunc compiles checks into a form-level clean step. Every failing
// check contributes one error.
func CleanFunc(checks []Check) (form.CleanFunc, error) {
	for _, check := range checks {
		if err := check.Validate(); err != nil {
			return nil, err
		}
	}
	compiled := append([]Check(nil), checks...)

	return func(_ context.Context, cleaned map[string]any) error {
		var errs error
		for _, check := range compiled {
			left, right := cleaned[check.Field], cleaned[check.Other]
			if left == nil || right == nil {
				continue
			}
			result, ok := compare(left, right)
			op := operators[strings.ToLower(strings.TrimSpace(check.Op))]
			if ok && op.holds(result) {
				continue
			}
			message := check.Message
			if message == "" {
				message = fmt.Sprintf("%s must be %s %s.", check.Field, op.phrase, check.Other)
			}
			if check.Attach != "" {
				errs = multierr.Append(errs, form.NewValidationError(check.Attach, message))
				continue
			}
			errs = multierr.Append(errs, errors.New(message))
		}
		return errs
	}, nil
}

// compare orders two cleaned values. Values of different kinds that cannot
// both be read as numbers are not comparable.
func compare(left, right any) (int, bool) {
	switch l := left.(type) {
	case time.Time:
		r, ok := right.(time.Time)
		if !ok {
			return 0, false
		}
		return l.Compare(r), true
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(l, r), true
	}

	l, err := cast.ToFloat64E(left)
	if err != nil {
		return 0, false
	}
	r, err := cast.ToFloat64E(right)
	if err != nil {
		return 0, false
	}
	switch {
	case l < r:
		return -1, true
	case l > r:
		return 1, true
	default:
		return 0, true
	}
}
