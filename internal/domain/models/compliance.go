package models

import "time"

// KYC review lifecycle states.
const (
	KYCNone     = "NONE"
	KYCPending  = "PENDING"
	KYCApproved = "APPROVED"
	KYCRejected = "REJECTED"
)

// Support ticket states.
const (
	TicketOpen       = "OPEN"
	TicketInProgress = "IN_PROGRESS"
	TicketClosed     = "CLOSED"
)

// KYCRecord is one identity-verification submission and its review state.
type KYCRecord struct {
	ID           string    `json:"id"`
	Account      AccountID `json:"account"`
	DocumentType string    `json:"document_type"`
	DocumentRef  string    `json:"document_ref"`
	Country      string    `json:"country"`
	Status       string    `json:"status"`
	ReviewNote   string    `json:"review_note,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

type SupportTicket struct {
	ID        string    `json:"id"`
	Account   AccountID `json:"account"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile is the backend's account record for settings mutations.
type UserProfile struct {
	Account      AccountID   `json:"account"`
	DisplayName  string      `json:"display_name"`
	Role         Role        `json:"role"`
	TradingMode  TradingMode `json:"trading_mode"`
	SectorPolicy []string    `json:"sector_policy"`
	KYCStatus    string      `json:"kyc_status"`
}
