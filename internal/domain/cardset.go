package domain

// CardSet is a caller-owned collection of cards with lookup by id.
// It copies cards in and out so callers never share backing storage with it.
type CardSet struct {
	cards []ReviewCard
	index map[string]int
}

// NewCardSet indexes the given cards. Later duplicates replace earlier ones.
func NewCardSet(cards []ReviewCard) *CardSet {
	s := &CardSet{
		cards: make([]ReviewCard, 0, len(cards)),
		index: make(map[string]int, len(cards)),
	}
	for _, c := range cards {
		s.Put(c)
	}
	return s
}

// Find returns the card with the given id or a not-found error.
func (s *CardSet) Find(id string) (ReviewCard, error) {
	i, ok := s.index[id]
	if !ok {
		return ReviewCard{}, ErrCardNotFound(id)
	}
	return s.cards[i], nil
}

// Put inserts the card or replaces the one with the same id.
func (s *CardSet) Put(card ReviewCard) {
	if i, ok := s.index[card.ID]; ok {
		s.cards[i] = card
		return
	}
	s.index[card.ID] = len(s.cards)
	s.cards = append(s.cards, card)
}

// Len returns the number of cards held.
func (s *CardSet) Len() int {
	return len(s.cards)
}

// Cards returns a copy of the cards in insertion order.
func (s *CardSet) Cards() []ReviewCard {
	out := make([]ReviewCard, len(s.cards))
	copy(out, s.cards)
	return out
}
