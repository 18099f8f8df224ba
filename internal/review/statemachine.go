package review

import (
	"fmt"

	"github.com/Lllllllleong/conferenceportal/internal/models"
)

// adminTransitions is the fixed review graph. accepted and rejected have no
// outgoing edges, and pending_review is entered only by author resubmission.
var adminTransitions = map[models.SubmissionStatus][]models.SubmissionStatus{
	models.StatusPending: {
		models.StatusAccepted,
		models.StatusAcceptedWithRevision,
		models.StatusRejected,
	},
	models.StatusPendingReview: {
		models.StatusAccepted,
		models.StatusAcceptedWithRevision,
		models.StatusRejected,
	},
}

// CanTransition reports whether an admin may move a submission from one
// status to another.
func CanTransition(from, to models.SubmissionStatus) bool {
	for _, allowed := range adminTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested transition, including the rule that a
// revision request must carry instructions.
func ValidateTransition(from, to models.SubmissionStatus, comments string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("cannot move submission from %q to %q", from, to)
	}
	if to == models.StatusAcceptedWithRevision && comments == "" {
		return fmt.Errorf("revision instructions are required for %q", to)
	}
	return nil
}
