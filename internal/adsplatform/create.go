package adsplatform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
)

// CreateCampaign creates a campaign in the account. A platform rejection is
// reported in CreateResult.Error; only transport failures return an error.
func (c *Client) CreateCampaign(ctx context.Context, accountID string, cfg CampaignConfig) (CreateResult, error) {
	categories := cfg.SpecialAdCategories
	if categories == nil {
		categories = []string{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return CreateResult{}, fmt.Errorf("adsplatform: encode special_ad_categories: %w", err)
	}

	params := url.Values{}
	params.Set("name", cfg.Name)
	params.Set("objective", cfg.Objective)
	params.Set("status", defaultString(cfg.Status, "PAUSED"))
	params.Set("special_ad_categories", string(encoded))
	setIfNotEmpty(params, "buying_type", cfg.BuyingType)
	setIfNotEmpty(params, "bid_strategy", cfg.BidStrategy)
	setIfPositive(params, "daily_budget", cfg.DailyBudget)

	return c.create(ctx, "create_campaign", accountID, accountPath(accountID)+"/campaigns", params)
}

// CreateAdSet creates an ad set under campaignID. When pixelID is set the ad
// set optimises for cfg.CustomEventType (PURCHASE by default) on that pixel.
func (c *Client) CreateAdSet(ctx context.Context, accountID, campaignID string, cfg AdSetConfig, pixelID string) (CreateResult, error) {
	targeting := cfg.Targeting
	if targeting == nil {
		targeting = map[string]any{}
	}
	encoded, err := json.Marshal(targeting)
	if err != nil {
		return CreateResult{}, fmt.Errorf("adsplatform: encode targeting: %w", err)
	}

	params := url.Values{}
	params.Set("name", cfg.Name)
	params.Set("campaign_id", campaignID)
	params.Set("status", defaultString(cfg.Status, "PAUSED"))
	params.Set("billing_event", defaultString(cfg.BillingEvent, "IMPRESSIONS"))
	params.Set("optimization_goal", cfg.OptimizationGoal)
	params.Set("targeting", string(encoded))
	setIfNotEmpty(params, "bid_strategy", cfg.BidStrategy)
	setIfNotEmpty(params, "start_time", cfg.StartTime)
	setIfPositive(params, "daily_budget", cfg.DailyBudget)
	setIfPositive(params, "bid_amount", cfg.BidAmount)

	if pixelID != "" {
		promoted, err := json.Marshal(map[string]string{
			"pixel_id":          pixelID,
			"custom_event_type": defaultString(cfg.CustomEventType, "PURCHASE"),
		})
		if err != nil {
			return CreateResult{}, fmt.Errorf("adsplatform: encode promoted_object: %w", err)
		}
		params.Set("promoted_object", string(promoted))
	}

	return c.create(ctx, "create_adset", accountID, accountPath(accountID)+"/adsets", params)
}

func (c *Client) create(ctx context.Context, op, accountID, path string, params url.Values) (CreateResult, error) {
	var body struct {
		ID string `json:"id"`
	}
	rate, err := c.call(ctx, request{
		op:      op,
		class:   ratelimit.ClassWrite,
		account: accountID,
		method:  http.MethodPost,
		path:    path,
		params:  params,
	}, &body)
	res := CreateResult{ID: body.ID, Rate: rate}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		res.ID = ""
		res.Error = apiErr
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if res.ID == "" {
		return res, &PlatformError{Sentinel: ErrUpstreamBadResponse, Operation: op, Body: "missing id"}
	}
	return res, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setIfPositive(v url.Values, key string, value int64) {
	if value > 0 {
		v.Set(key, strconv.FormatInt(value, 10))
	}
}
