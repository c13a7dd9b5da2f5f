package domain

import "github.com/m-mizutani/goerr/v2"

// Error tags shared by every package. Callers branch on tags, not messages.
var (
	TagValidation = goerr.NewTag("validation")
	TagNotFound   = goerr.NewTag("not_found")
	TagStorage    = goerr.NewTag("storage")
)

// IsValidation reports whether err was rejected as invalid input.
func IsValidation(err error) bool {
	return goerr.HasTag(err, TagValidation)
}

// IsNotFound reports whether err refers to a card or source that does not exist.
func IsNotFound(err error) bool {
	return goerr.HasTag(err, TagNotFound)
}

// ErrCardNotFound builds the not-found error for a card id.
func ErrCardNotFound(cardID string) error {
	return goerr.New("card not found", goerr.V("card_id", cardID), goerr.T(TagNotFound))
}
