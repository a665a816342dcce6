package merge

import "github.com/dmitrijs2005/lexisync/internal/server/models"

// Report holds the per-collection statistics of one bundle merge. For the
// study log, Conflicts counts duplicate entries that were dropped.
type Report struct {
	Decks        Stats `json:"decks"`
	Cards        Stats `json:"cards"`
	Achievements Stats `json:"userAchievements"`
	StudyHistory Stats `json:"studyHistory"`
}

// Collections returns the report keyed by collection name.
func (r Report) Collections() map[string]Stats {
	return map[string]Stats{
		"decks":            r.Decks,
		"cards":            r.Cards,
		"userAchievements": r.Achievements,
		"studyHistory":     r.StudyHistory,
	}
}

// Conflicts returns, per id-keyed collection, how many ids were present on
// both sides. The study log has no ids and is not included.
func (r Report) Conflicts() map[string]int {
	return map[string]int{
		"decks":            r.Decks.Conflicts,
		"cards":            r.Cards.Conflicts,
		"userAchievements": r.Achievements.Conflicts,
	}
}

// Bundle merges a client bundle into the stored one. Either side may be nil
// and absent collections are treated as empty. The result is normalized.
func Bundle(server, client *models.DataBundle) (*models.DataBundle, Report) {
	if server == nil {
		server = &models.DataBundle{}
	}
	if client == nil {
		client = &models.DataBundle{}
	}

	var report Report
	out := &models.DataBundle{}

	out.Decks, report.Decks = ReconcileStats(server.Decks, client.Decks)
	out.Cards, report.Cards = ReconcileStats(server.Cards, client.Cards)
	out.UserAchievements, report.Achievements = ReconcileStats(server.UserAchievements, client.UserAchievements)

	out.StudyHistory = MergeLogs(server.StudyHistory, client.StudyHistory)
	report.StudyHistory = Stats{
		Server: len(server.StudyHistory),
		Client: len(client.StudyHistory),
		Merged: len(out.StudyHistory),
	}
	report.StudyHistory.Conflicts = report.StudyHistory.Server + report.StudyHistory.Client - report.StudyHistory.Merged

	out.UserProfile = ResolveProfile(server.UserProfile, client.UserProfile)

	return out.Normalize(), report
}
