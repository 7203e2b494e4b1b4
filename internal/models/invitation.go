package models

import (
	"time"
)

// InvitationStatus represents the status of an interview invitation.
type InvitationStatus string

const (
	// InvitationStatusPending indicates the candidate has not responded.
	InvitationStatusPending InvitationStatus = "pending"
	// InvitationStatusAccepted indicates the candidate picked a slot.
	InvitationStatusAccepted InvitationStatus = "accepted"
	// InvitationStatusExpired indicates the invitation lapsed unanswered.
	InvitationStatusExpired InvitationStatus = "expired"
	// InvitationStatusRevoked indicates HR withdrew the invitation.
	InvitationStatusRevoked InvitationStatus = "revoked"
)

// Invitation is an offer to interview, carrying the HR-proposed time slots
// and, once accepted, the candidate's chosen one. Session issuance is
// triggered only by an accepted invitation with a concrete slot.
type Invitation struct {
	ID             string           `json:"id"`
	InterviewID    string           `json:"interview_id"`
	CandidateEmail string           `json:"candidate_email"`
	CandidateName  string           `json:"candidate_name"`
	OfferedSlots   []time.Time      `json:"offered_slots"`
	ChosenSlot     *time.Time       `json:"chosen_slot,omitempty"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IsExpired returns true if the invitation has lapsed.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsAccepted returns true if the invitation was accepted with a concrete slot.
func (i *Invitation) IsAccepted() bool {
	return i.Status == InvitationStatusAccepted && i.ChosenSlot != nil
}
