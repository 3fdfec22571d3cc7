package negotiation

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/twogether/internal/domain"
)

const windowLayout = "Mon 2 Jan 2006, 15:04"

// PlanFinalizedNotification renders the message sent to the originator when
// partner B picks the final plan.
func PlanFinalizedNotification(s *domain.DateSession) domain.Notification {
	final, _ := s.FinalCandidate()

	var b strings.Builder
	b.WriteString("Your date is set!\n\n")
	fmt.Fprintf(&b, "Plan: %s\n", final.Title)
	if final.Description != "" {
		fmt.Fprintf(&b, "%s\n", final.Description)
	}
	if final.Venue != "" {
		fmt.Fprintf(&b, "Where: %s\n", final.Venue)
	}
	fmt.Fprintf(&b, "Vibe: %s\n", final.Vibe)
	fmt.Fprintf(&b, "Estimated cost: $%s\n", final.Cost.StringFixed(2))

	if windows := s.PreferencesA.TimeWindows; len(windows) > 0 {
		w := windows[0]
		fmt.Fprintf(&b, "When: %s-%s\n", w.Start.Format(windowLayout), w.End.Format("15:04 MST"))
	}
	if s.PreferencesA.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", s.PreferencesA.Duration)
	}
	b.WriteString("\nWe will send you a short icebreaker quiz before the date.")

	return domain.Notification{
		Kind:      domain.NotifyPlanFinalized,
		SessionID: s.ID,
		Subject:   "Your date plan is final",
		Body:      b.String(),
	}
}
