package models

import (
	"fmt"

	"github.com/dmitrijs2005/lexisync/internal/common"
)

// DataBundle is everything the client syncs for one user.
type DataBundle struct {
	Decks            []Deck          `json:"decks"`
	Cards            []Card          `json:"cards"`
	StudyHistory     []StudyLogEntry `json:"studyHistory"`
	UserProfile      *Profile        `json:"userProfile"`
	UserAchievements []Achievement   `json:"userAchievements"`
}

// Normalize replaces nil collections with empty ones so the bundle encodes as
// [] rather than null.
func (b *DataBundle) Normalize() *DataBundle {
	if b.Decks == nil {
		b.Decks = []Deck{}
	}
	if b.Cards == nil {
		b.Cards = []Card{}
	}
	if b.StudyHistory == nil {
		b.StudyHistory = []StudyLogEntry{}
	}
	if b.UserAchievements == nil {
		b.UserAchievements = []Achievement{}
	}
	return b
}

// Validate checks that every reconcilable entity carries an id.
func (b *DataBundle) Validate() error {
	if err := requireIDs("decks", b.Decks); err != nil {
		return err
	}
	if err := requireIDs("cards", b.Cards); err != nil {
		return err
	}
	return requireIDs("userAchievements", b.UserAchievements)
}

type keyed interface {
	Key() (string, bool)
}

func requireIDs[T keyed](collection string, items []T) error {
	for i, item := range items {
		if _, ok := item.Key(); !ok {
			return common.NewValidationError(fmt.Sprintf("%s[%d].id", collection, i), "is required")
		}
	}
	return nil
}
