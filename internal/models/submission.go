package models

import (
	"fmt"
	"time"
)

// SubmissionStatus is the review state of a Submission.
type SubmissionStatus string

const (
	StatusPending              SubmissionStatus = "pending"
	StatusAccepted             SubmissionStatus = "accepted"
	StatusAcceptedWithRevision SubmissionStatus = "accepted_with_revision"
	StatusPendingReview        SubmissionStatus = "pending_review"
	StatusRejected             SubmissionStatus = "rejected"
)

var submissionStatuses = []SubmissionStatus{
	StatusPending,
	StatusAccepted,
	StatusAcceptedWithRevision,
	StatusPendingReview,
	StatusRejected,
}

// ParseSubmissionStatus converts a raw string into a SubmissionStatus.
// Unrecognized values, including legacy ones, are rejected rather than mapped.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	for _, s := range submissionStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unrecognized submission status %q", raw)
}

// IsTerminal reports whether the review loop has ended for this status.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// SubmissionType distinguishes abstracts from full papers.
type SubmissionType string

const (
	TypeAbstract  SubmissionType = "abstract"
	TypeFullPaper SubmissionType = "fullpaper"
)

// ParseSubmissionType converts a raw string into a SubmissionType.
func ParseSubmissionType(raw string) (SubmissionType, error) {
	switch SubmissionType(raw) {
	case TypeAbstract, TypeFullPaper:
		return SubmissionType(raw), nil
	}
	return "", fmt.Errorf("unrecognized submission type %q", raw)
}

// VersionRecord is an immutable snapshot of a prior file and its review outcome.
type VersionRecord struct {
	Version      int              `firestore:"version" json:"version"`
	FileURL      string           `firestore:"fileUrl" json:"fileUrl"`
	SubmittedAt  time.Time        `firestore:"submittedAt" json:"submittedAt"`
	Status       SubmissionStatus `firestore:"status" json:"status"`
	AdminComment string           `firestore:"adminComment" json:"adminComment,omitempty"`
	ReviewedBy   string           `firestore:"reviewedBy" json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time       `firestore:"reviewedAt" json:"reviewedAt,omitempty"`
}

// Submission is the Firestore record of an authored paper or abstract.
// Review fields use the empty string (or a nil time) as their absent value.
type Submission struct {
	ID              string           `firestore:"-" json:"id"`
	UserID          string           `firestore:"userId" json:"userId"`
	ReferenceNumber string           `firestore:"referenceNumber" json:"referenceNumber"`
	Title           string           `firestore:"title" json:"title"`
	Authors         []string         `firestore:"authors" json:"authors"`
	SubmissionType  SubmissionType   `firestore:"submissionType" json:"submissionType"`
	Status          SubmissionStatus `firestore:"status" json:"status"`
	CurrentVersion  int              `firestore:"currentVersion" json:"currentVersion"`
	Versions        []VersionRecord  `firestore:"versions" json:"versions"`
	PDFURL          string           `firestore:"pdfUrl" json:"pdfUrl"`
	SubmittedAt     time.Time        `firestore:"submittedAt" json:"submittedAt"`
	ReviewComments  string           `firestore:"reviewComments" json:"reviewComments,omitempty"`
	ReviewedBy      string           `firestore:"reviewedBy" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time       `firestore:"reviewedAt" json:"reviewedAt,omitempty"`
	PaymentState
}

// CheckVersionInvariants verifies that archived versions are numbered 1..n
// without gaps and that CurrentVersion is n+1.
func (s *Submission) CheckVersionInvariants() error {
	for i, v := range s.Versions {
		if v.Version != i+1 {
			return fmt.Errorf("version at index %d is numbered %d", i, v.Version)
		}
	}
	if s.CurrentVersion != len(s.Versions)+1 {
		return fmt.Errorf("currentVersion %d does not follow %d archived versions", s.CurrentVersion, len(s.Versions))
	}
	return nil
}

// ArchiveCurrent appends a snapshot of the current file and review outcome,
// installs newURL as the current file and resets the review fields.
func (s *Submission) ArchiveCurrent(newURL string, at time.Time) VersionRecord {
	rec := VersionRecord{
		Version:      s.CurrentVersion,
		FileURL:      s.PDFURL,
		SubmittedAt:  s.SubmittedAt,
		Status:       s.Status,
		AdminComment: s.ReviewComments,
		ReviewedBy:   s.ReviewedBy,
		ReviewedAt:   s.ReviewedAt,
	}
	s.Versions = append(s.Versions, rec)
	s.PDFURL = newURL
	s.SubmittedAt = at
	s.CurrentVersion++
	s.ReviewComments = ""
	s.ReviewedBy = ""
	s.ReviewedAt = nil
	s.Status = StatusPendingReview
	return rec
}

// History returns the archived versions followed by the current one.
func (s *Submission) History() []VersionRecord {
	out := make([]VersionRecord, 0, len(s.Versions)+1)
	out = append(out, s.Versions...)
	out = append(out, VersionRecord{
		Version:      s.CurrentVersion,
		FileURL:      s.PDFURL,
		SubmittedAt:  s.SubmittedAt,
		Status:       s.Status,
		AdminComment: s.ReviewComments,
		ReviewedBy:   s.ReviewedBy,
		ReviewedAt:   s.ReviewedAt,
	})
	return out
}
