package memstore

import (
	"time"

	"github.com/Lllllllleong/conferenceportal/internal/models"
)

// The clone helpers give each caller its own copy, matching the value
// semantics of documents read from Firestore.

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func clonePayment(p models.PaymentState) models.PaymentState {
	p.PaymentDate = cloneTime(p.PaymentDate)
	return p
}

func cloneSubmission(s *models.Submission) *models.Submission {
	c := *s
	c.Authors = append([]string(nil), s.Authors...)
	c.Versions = make([]models.VersionRecord, len(s.Versions))
	for i, v := range s.Versions {
		v.ReviewedAt = cloneTime(v.ReviewedAt)
		c.Versions[i] = v
	}
	c.ReviewedAt = cloneTime(s.ReviewedAt)
	c.PaymentState = clonePayment(s.PaymentState)
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.VerificationReviewedAt = cloneTime(u.VerificationReviewedAt)
	return &c
}

func cloneAttendee(a *models.Attendee) *models.Attendee {
	c := *a
	c.PaymentState = clonePayment(a.PaymentState)
	return &c
}

func cloneIntent(in *models.PaymentIntent) *models.PaymentIntent {
	c := *in
	return &c
}
