package domain

// Action is a quota-counted capability.
type Action string

const (
	ActionImage  Action = "image"
	ActionSpeech Action = "tts"
)

const (
	DefaultFreeImageLimit = 100
	DefaultFreeTTSLimit   = 100

	// Unlimited is reported as the remaining quota of premium users.
	Unlimited = -1
)

// UsageRecord holds one user's counters for a single calendar day.
type UsageRecord struct {
	UserID     int64  `json:"-"`
	Date       string `json:"date"`
	ImagesUsed int    `json:"images_used"`
	TTSUsed    int    `json:"tts_used"`
}

// Used returns the counter for the given action.
func (r UsageRecord) Used(action Action) int {
	if action == ActionImage {
		return r.ImagesUsed
	}
	return r.TTSUsed
}
