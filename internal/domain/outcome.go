package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
)

// Difficulty is how hard the learner found the item on this attempt.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Outcome is the result of one review attempt as reported by the session.
// An empty Difficulty is treated as Medium.
type Outcome struct {
	IsCorrect    bool       `json:"is_correct"`
	ResponseTime int64      `json:"response_time" validate:"gte=0"`
	Quality      int        `json:"quality" validate:"gte=0,lte=5"`
	Difficulty   Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// Passed reports whether the attempt counts as a successful recall.
func (o Outcome) Passed() bool {
	return o.IsCorrect && o.Quality >= PassingQuality
}

// Level returns the difficulty with the empty default resolved.
func (o Outcome) Level() Difficulty {
	if o.Difficulty == "" {
		return Medium
	}
	return o.Difficulty
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the outcome ranges. The returned error carries TagValidation.
func (o Outcome) Validate() error {
	if err := validate.Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return goerr.Wrap(err, "invalid review outcome",
				goerr.V("fields", formatFieldErrors(fieldErrs)),
				goerr.V("quality", o.Quality),
				goerr.V("response_time", o.ResponseTime),
				goerr.T(TagValidation))
		}
		return goerr.Wrap(err, "failed to validate review outcome", goerr.T(TagValidation))
	}
	return nil
}

func formatFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.Tag() {
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		case "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
