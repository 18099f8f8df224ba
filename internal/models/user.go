package models

import (
	"fmt"
	"time"
)

// Role determines fees and, for admins, review privileges.
type Role string

const (
	RoleStudent Role = "student"
	RoleScholar Role = "scholar"
	RoleAdmin   Role = "admin"
)

// VerificationStatus tracks review of a user's identity document.
type VerificationStatus string

const (
	VerificationNotSubmitted VerificationStatus = "not_submitted"
	VerificationPending      VerificationStatus = "pending"
	VerificationApproved     VerificationStatus = "approved"
	VerificationRejected     VerificationStatus = "rejected"
)

// User is the account record. Submissions reference it by UserID.
type User struct {
	ID                     string             `firestore:"-" json:"id"`
	Name                   string             `firestore:"name" json:"name"`
	Email                  string             `firestore:"email" json:"email"`
	Role                   Role               `firestore:"role" json:"role"`
	VerificationStatus     VerificationStatus `firestore:"verificationStatus" json:"verificationStatus"`
	IdentityDocumentURL    string             `firestore:"identityDocumentUrl" json:"identityDocumentUrl,omitempty"`
	VerificationReviewedBy string             `firestore:"verificationReviewedBy" json:"verificationReviewedBy,omitempty"`
	VerificationReviewedAt *time.Time         `firestore:"verificationReviewedAt" json:"verificationReviewedAt,omitempty"`
}

// RecordIdentityDocument attaches a newly uploaded document and queues it for
// review. Approved users cannot replace their document.
func (u *User) RecordIdentityDocument(url string) error {
	switch u.VerificationStatus {
	case VerificationApproved:
		return fmt.Errorf("identity already approved")
	case "", VerificationNotSubmitted, VerificationPending, VerificationRejected:
	default:
		return fmt.Errorf("unrecognized verification status %q", u.VerificationStatus)
	}
	u.IdentityDocumentURL = url
	u.VerificationStatus = VerificationPending
	u.VerificationReviewedBy = ""
	u.VerificationReviewedAt = nil
	return nil
}
