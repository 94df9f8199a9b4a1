// Package events defines the webhook event variants accepted by hookd and
// decodes raw deliveries into them.
package events

import (
	"encoding/json"
	"time"
)

// Kind identifies one of the recognized event tags.
type Kind string

const (
	KindMessage    Kind = "message"
	KindLead       Kind = "lead"
	KindConversion Kind = "conversion"
	KindPayment    Kind = "payment"
)

// Kinds lists the recognized tags in dispatch order.
var Kinds = []Kind{KindMessage, KindLead, KindConversion, KindPayment}

// Known reports whether k is a recognized tag.
func (k Kind) Known() bool {
	switch k {
	case KindMessage, KindLead, KindConversion, KindPayment:
		return true
	}
	return false
}

// Event is a decoded webhook delivery. The set of implementations is closed:
// Message, Lead, Conversion, Payment and Unknown.
type Event interface {
	// Kind returns the recognized tag, or "" for Unknown.
	Kind() Kind
	// Name returns the tag exactly as received.
	Name() string

	isEvent()
}

// Message is a chat message from a customer (WhatsApp, Instagram, site chat).
type Message struct {
	Payload MessagePayload
}

// Lead is a new contact captured by a form or campaign.
type Lead struct {
	Payload LeadPayload
}

// Conversion is a campaign conversion reported by the ads pipeline.
type Conversion struct {
	Payload ConversionPayload
}

// Payment is a payment status notification.
type Payment struct {
	Payload PaymentPayload
}

// Unknown carries any unrecognized tag with its data untouched.
type Unknown struct {
	Tag  string
	Data json.RawMessage
}

func (Message) Kind() Kind    { return KindMessage }
func (Lead) Kind() Kind       { return KindLead }
func (Conversion) Kind() Kind { return KindConversion }
func (Payment) Kind() Kind    { return KindPayment }
func (Unknown) Kind() Kind    { return "" }

func (Message) Name() string    { return string(KindMessage) }
func (Lead) Name() string       { return string(KindLead) }
func (Conversion) Name() string { return string(KindConversion) }
func (Payment) Name() string    { return string(KindPayment) }
func (u Unknown) Name() string  { return u.Tag }

func (Message) isEvent()    {}
func (Lead) isEvent()       {}
func (Conversion) isEvent() {}
func (Payment) isEvent()    {}
func (Unknown) isEvent()    {}

// Channels a message may arrive through.
const (
	ChannelWhatsApp  = "whatsapp"
	ChannelInstagram = "instagram"
	ChannelSite      = "site"
	ChannelEmail     = "email"
)

type MessagePayload struct {
	ID          string     `json:"id,omitempty"`
	ContactName string     `json:"contact_name,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	Text        string     `json:"text,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

type LeadPayload struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Source     string `json:"source,omitempty"`
	Service    string `json:"service,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

type ConversionPayload struct {
	CampaignID  string     `json:"campaign_id,omitempty"`
	LeadID      string     `json:"lead_id,omitempty"`
	Value       float64    `json:"value,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

type PaymentPayload struct {
	ID       string  `json:"id,omitempty"`
	LeadID   string  `json:"lead_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Method   string  `json:"method,omitempty"`
	Status   string  `json:"status,omitempty"`
}
