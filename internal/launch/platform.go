package launch

import (
	"context"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
)

// Platform is the ads platform surface the pipeline drives.
// *adsplatform.Client implements it.
type Platform interface {
	CheckLibraryByName(ctx context.Context, accountID string, names []string) (adsplatform.LibraryResult, error)
	UploadVideoBatch(ctx context.Context, accountID string, reqs []adsplatform.UploadRequest) (adsplatform.BatchResult, error)
	PollLibrary(ctx context.Context, accountID string, videoIDs []string) (adsplatform.LibraryResult, error)
	CreateCampaign(ctx context.Context, accountID string, cfg adsplatform.CampaignConfig) (adsplatform.CreateResult, error)
	CreateAdSet(ctx context.Context, accountID, campaignID string, cfg adsplatform.AdSetConfig, pixelID string) (adsplatform.CreateResult, error)
	CreateAdsBatch(ctx context.Context, accountID, adsetID, pageID string, ads []adsplatform.AdRequest, creative adsplatform.CreativeConfig) (adsplatform.BatchResult, error)
}

var _ Platform = (*adsplatform.Client)(nil)
