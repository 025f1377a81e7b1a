// internal/workers/alerts/send-deal-alert/models.go
package senddealalert

type Input struct {
	AlertID   string         `json:"alertId"`
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	SMSOptIn  bool           `json:"smsOptIn,omitempty"`
	Frequency string         `json:"frequency,omitempty"`
	Listing   ListingSummary `json:"listing"`
}

// ListingSummary is the slice of the listing the alert message needs.
// match-deal-alerts resolves it upstream, so this worker never reads
// the database.
type ListingSummary struct {
	ListingID   string `json:"listingId"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Location    string `json:"location,omitempty"`
	Revenue     int64  `json:"revenue,omitempty"`
	AskingPrice int64  `json:"askingPrice,omitempty"`
}

// Output records the outcome per channel. Failures carries one entry
// per channel that errored; the job itself still completes.
type Output struct {
	NotificationID string   `json:"notificationId"`
	EmailSent      bool     `json:"emailSent"`
	SMSSent        bool     `json:"smsSent"`
	WebhookSent    bool     `json:"webhookSent"`
	Failures       []string `json:"failures,omitempty"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}
