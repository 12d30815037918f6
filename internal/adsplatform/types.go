package adsplatform

// Video processing states reported by the library.
const (
	VideoStatusReady      = "ready"
	VideoStatusProcessing = "processing"
	VideoStatusError      = "error"
)

// LibraryVideo is one entry of the account video library.
type LibraryVideo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Progress  int    `json:"progress,omitempty"`
}

// Ready reports whether the video finished processing and has a thumbnail.
func (v LibraryVideo) Ready() bool {
	return v.Status == VideoStatusReady && v.Thumbnail != ""
}

// Failed reports whether remote processing gave up on the video.
func (v LibraryVideo) Failed() bool {
	return v.Status == VideoStatusError
}

// LibraryResult maps a lookup key (title or video id) to the matching video.
// Rate is the highest usage reported across pages, or -1 when no response
// arrived.
type LibraryResult struct {
	Items map[string]LibraryVideo
	Rate  float64
}

// UploadRequest asks the platform to fetch a video from URL.
type UploadRequest struct {
	Name string
	URL  string
}

// BatchItemResult is the per-operation answer of a batch call.
// A zero Code means the platform returned no entry for the operation.
type BatchItemResult struct {
	Code int    `json:"code"`
	Body string `json:"body"`
}

// BatchResult holds one entry per submitted operation, in submission order.
// Rate is -1 when no response arrived.
type BatchResult struct {
	Items []BatchItemResult
	Rate  float64
}

// CreateResult is the outcome of a single create call. Either ID or Error is set.
type CreateResult struct {
	ID    string
	Error *APIError
	Rate  float64
}

// Media kinds accepted in AdRequest.Type.
const (
	MediaVideo = "video"
	MediaImage = "image"
)

// AdRequest describes one ad to create in a batch.
type AdRequest struct {
	Name         string
	Type         string
	VideoID      string
	ThumbnailURL string
	ImageURL     string
}

// CampaignConfig holds the campaign fields sent on creation.
type CampaignConfig struct {
	Name                string   `yaml:"name" json:"name"`
	Objective           string   `yaml:"objective" json:"objective"`
	Status              string   `yaml:"status" json:"status"`
	BuyingType          string   `yaml:"buying_type" json:"buying_type,omitempty"`
	SpecialAdCategories []string `yaml:"special_ad_categories" json:"special_ad_categories"`
	DailyBudget         int64    `yaml:"daily_budget" json:"daily_budget,omitempty"` // minor currency units; enables campaign budget optimisation
	BidStrategy         string   `yaml:"bid_strategy" json:"bid_strategy,omitempty"`
}

// AdSetConfig holds the ad set fields sent on creation.
type AdSetConfig struct {
	Name             string         `yaml:"name" json:"name"`
	Status           string         `yaml:"status" json:"status"`
	DailyBudget      int64          `yaml:"daily_budget" json:"daily_budget,omitempty"`
	BillingEvent     string         `yaml:"billing_event" json:"billing_event"`
	OptimizationGoal string         `yaml:"optimization_goal" json:"optimization_goal"`
	BidStrategy      string         `yaml:"bid_strategy" json:"bid_strategy,omitempty"`
	BidAmount        int64          `yaml:"bid_amount" json:"bid_amount,omitempty"`
	CustomEventType  string         `yaml:"custom_event_type" json:"custom_event_type,omitempty"`
	StartTime        string         `yaml:"start_time" json:"start_time,omitempty"`
	Targeting        map[string]any `yaml:"targeting" json:"targeting"`
}

// CreativeConfig is shared by every ad of a launch.
type CreativeConfig struct {
	Message      string `yaml:"message" json:"message"`
	Headline     string `yaml:"headline" json:"headline"`
	Description  string `yaml:"description" json:"description,omitempty"`
	Link         string `yaml:"link" json:"link"`
	CallToAction string `yaml:"call_to_action" json:"call_to_action"`
	AdStatus     string `yaml:"ad_status" json:"ad_status"`
}
