package models

import "time"

// User is an account in the store. Phone/carrier/whatsapp are optional
// default delivery addresses used when a send request omits a recipient.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	PhoneCarrier string    `json:"phone_carrier,omitempty"`
	WhatsApp     string    `json:"whatsapp,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transcript is a finished transcription kept in the user's history.
type Transcript struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	SourceURL string    `json:"url"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	LineCount int       `json:"line_count"`
	CreatedAt time.Time `json:"created_at"`

	// Delivery tracking
	SentEmail    bool `json:"sent_email"`
	SentSMS      bool `json:"sent_sms"`
	SentWhatsApp bool `json:"sent_whatsapp"`
}
