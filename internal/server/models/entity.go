package models

import (
	"encoding/json"
	"strconv"
)

// Deck is a reconcilable deck entity.
type Deck struct{ Record }

// Card is a reconcilable flashcard entity.
type Card struct{ Record }

// Achievement is a reconcilable achievement entity.
type Achievement struct{ Record }

func (d Deck) WithDeleted(deleted bool) Deck { return Deck{d.withDeleted(deleted)} }

func (c Card) WithDeleted(deleted bool) Card { return Card{c.withDeleted(deleted)} }

func (a Achievement) WithDeleted(deleted bool) Achievement {
	return Achievement{a.withDeleted(deleted)}
}

// StudyLogEntry is one immutable study event.
type StudyLogEntry struct{ Record }

// LogKey identifies a study event for deduplication. Each component holds the
// compact JSON encoding of the field, or "" when the field is absent. Numbers
// are reduced to their shortest float64 form, so 3, 3.0 and 3e0 are one key
// while the string "3" stays distinct.
type LogKey struct {
	CardID string
	Date   string
	Rating string
}

func (e StudyLogEntry) DedupKey() LogKey {
	return LogKey{
		CardID: keyPart(e.Field("cardId")),
		Date:   keyPart(e.Field("date")),
		Rating: keyPart(e.Field("rating")),
	}
}

func keyPart(raw json.RawMessage) string {
	if len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return string(raw)
}

// Profile is the user's singleton settings object.
type Profile struct{ Record }

