package launch

import (
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultUploadBatchSize  = 10
	DefaultAdBatchSize      = 25
	DefaultUploadStagger    = time.Second
	DefaultTickInterval     = 10 * time.Second
	DefaultInitialPollDelay = 8 * time.Second
	DefaultMaxTicks         = 15
	DefaultMaxRetries       = 3
)

// Options tunes a run. Zero or negative numeric fields take the defaults.
type Options struct {
	CheckLibraryFirst bool
	ForceReupload     bool
	UploadBatchSize   int
	AdBatchSize       int
	UploadStagger     time.Duration
	TickInterval      time.Duration
	InitialPollDelay  time.Duration
	MaxTicks          int
	MaxRetries        int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{CheckLibraryFirst: true}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.UploadBatchSize <= 0 {
		o.UploadBatchSize = DefaultUploadBatchSize
	}
	if o.AdBatchSize <= 0 {
		o.AdBatchSize = DefaultAdBatchSize
	}
	if o.UploadStagger <= 0 {
		o.UploadStagger = DefaultUploadStagger
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.InitialPollDelay <= 0 {
		o.InitialPollDelay = DefaultInitialPollDelay
	}
	if o.MaxTicks <= 0 {
		o.MaxTicks = DefaultMaxTicks
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// CampaignParams identifies where ads go and how they are built.
type CampaignParams struct {
	AccountID string
	PageID    string
	PixelID   string

	Campaign adsplatform.CampaignConfig
	AdSet    adsplatform.AdSetConfig
	Creative adsplatform.CreativeConfig
}
