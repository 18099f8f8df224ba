package fsstore

import (
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/conferenceportal/internal/models"
)

func decodeSubmission(snap *firestore.DocumentSnapshot) (*models.Submission, error) {
	var sub models.Submission
	if err := snap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", snap.Ref.ID, err)
	}
	sub.ID = snap.Ref.ID
	return &sub, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", snap.Ref.ID, err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}

func decodeAttendee(snap *firestore.DocumentSnapshot) (*models.Attendee, error) {
	var att models.Attendee
	if err := snap.DataTo(&att); err != nil {
		return nil, fmt.Errorf("failed to decode attendee %s: %w", snap.Ref.ID, err)
	}
	att.ID = snap.Ref.ID
	return &att, nil
}

func decodeIntent(snap *firestore.DocumentSnapshot) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := snap.DataTo(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment %s: %w", snap.Ref.ID, err)
	}
	intent.TxnID = snap.Ref.ID
	return &intent, nil
}
