package script

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/bittoy/reactor/types"
)

// TagValidationInterceptor rejects a candidate write that fails a
// go-playground/validator tag rule (e.g. "required,gte=0,lte=60"), the same
// single-variable validation style validator.Var offers for request
// parameters outside of a struct. It is the declarative sibling of
// ValidationInterceptor: reach for this one when the rule is a plain
// constraint on the candidate value, and for ValidationInterceptor's JS
// scripts when the rule needs to see the current value or the subject too.
type TagValidationInterceptor struct {
	order    int
	property string
	tag      string
	validate *validator.Validate
}

// NewTagValidationInterceptor builds an interceptor scoped to property that
// rejects a candidate value failing tag.
func NewTagValidationInterceptor(order int, property, tag string) (*TagValidationInterceptor, error) {
	if tag == "" {
		return nil, fmt.Errorf("reactor: empty validation tag for %q", property)
	}
	return &TagValidationInterceptor{order: order, property: property, tag: tag, validate: validator.New()}, nil
}

func (t *TagValidationInterceptor) Order() int { return t.order }

func (t *TagValidationInterceptor) Write(wctx *types.WriteContext, next types.WriteNext) error {
	if wctx.Property != t.property {
		return next()
	}

	if err := t.validate.Var(wctx.New, t.tag); err != nil {
		return types.NewError(types.ValidationFailed, wctx.Subject, wctx.Property, err)
	}
	return next()
}

var _ types.WriteInterceptor = (*TagValidationInterceptor)(nil)
