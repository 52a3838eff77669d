package sessions

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pointflow/pointflow/internal/models"
)

const unknownParticipant = "Unknown"

// summarize builds the end-of-session report. Votes are resolved to display
// names; votes from participants no longer in the session show as Unknown.
// Stories still open for voting keep their voters but not their values.
func summarize(sess *models.Session, completedAt time.Time) *models.SessionSummary {
	names := make(map[string]string, len(sess.Participants))
	participants := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		names[p.ID] = p.Name
		participants = append(participants, p.Name)
	}

	summary := &models.SessionSummary{
		SessionName:  sess.Name,
		SessionCode:  sess.Code,
		CompletedAt:  completedAt,
		Participants: participants,
		Stories:      make([]models.StorySummary, 0, len(sess.Stories)),
	}

	for _, st := range sess.Stories {
		votes := make([]models.SummaryVote, 0, len(st.Votes))
		for _, v := range st.Votes {
			name, ok := names[v.ParticipantID]
			if !ok {
				name = unknownParticipant
			}
			value := v.Value
			if st.Status == models.StoryStatusVoting {
				// never revealed
				value = ""
			}
			votes = append(votes, models.SummaryVote{Participant: name, Value: value})
		}

		var final *string
		if st.FinalPoints != nil {
			p := *st.FinalPoints
			final = &p
		}
		summary.Stories = append(summary.Stories, models.StorySummary{
			Title:       st.Title,
			FinalPoints: final,
			Votes:       votes,
		})
		summary.TotalPoints += pointValue(st.FinalPoints)
	}

	return summary
}

// pointValue returns the numeric value of a final estimate, or 0 when the
// estimate is unset or not a finite number ("?", "☕", "XL").
func pointValue(points *string) float64 {
	if points == nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*points), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
