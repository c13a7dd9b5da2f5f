package knol

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/google/uuid"
)

// cardNamespace scopes card ids generated by CardID.
var cardNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/conorfennell/recall/card"))

// Normalize concatenates the item's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(content domain.Content) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	src := normalizePart(content.SourceText)
	tgt := normalizePart(content.TargetText)
	pat := normalizePart(content.Pattern)

	// Joined with newlines so "source" and "target" can never run together.
	return strings.Join([]string{src, tgt, pat, strconv.Itoa(content.Level)}, "\n")
}

// Hash normalizes the item and returns its SHA-256 hash as a hex string.
func Hash(content domain.Content) string {
	normalized := Normalize(content)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}

// CardID derives the id of a user's card for an item. The same user and item
// always map to the same id, so re-importing a deck never duplicates cards.
func CardID(userID, itemHash string) string {
	return uuid.NewSHA1(cardNamespace, []byte(userID+"\x00"+itemHash)).String()
}
