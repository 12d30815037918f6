// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manifest reads launch manifests: the campaign, ad set and creative
// settings plus the list of media to launch.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/validate"
)

// Account optionally overrides the configured account identifiers.
type Account struct {
	AccountID string `yaml:"account_id"`
	PageID    string `yaml:"page_id"`
	PixelID   string `yaml:"pixel_id"`
}

// Manifest is the YAML document describing one launch.
type Manifest struct {
	Account  Account                    `yaml:"account"`
	Campaign adsplatform.CampaignConfig `yaml:"campaign"`
	AdSet    adsplatform.AdSetConfig    `yaml:"adset"`
	Creative adsplatform.CreativeConfig `yaml:"creative"`
	Media    []launch.MediaInput        `yaml:"media"`
}

var callToActions = []string{
	"SHOP_NOW", "LEARN_MORE", "SIGN_UP", "ORDER_NOW", "BUY_NOW",
	"GET_OFFER", "SUBSCRIBE", "DOWNLOAD", "CONTACT_US", "APPLY_NOW", "WATCH_MORE",
}


// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported manifest format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- manifest paths are provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest strictly and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty: %w", launch.ErrNoMedia)
		}
		return nil, fmt.Errorf("strict manifest parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest contains multiple documents or trailing content")
	}

	m.normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalize() {
	for i := range m.Media {
		in := &m.Media[i]
		in.Name = strings.TrimSpace(in.Name)
		in.URL = strings.TrimSpace(in.URL)
		in.FallbackURL = strings.TrimSpace(in.FallbackURL)
		in.Type = launch.MediaType(strings.ToLower(string(in.Type)))
	}
	m.Campaign.Status = strings.ToUpper(m.Campaign.Status)
	m.AdSet.Status = strings.ToUpper(m.AdSet.Status)
	m.Creative.AdStatus = strings.ToUpper(m.Creative.AdStatus)
	m.Creative.CallToAction = strings.ToUpper(m.Creative.CallToAction)
}

// Validate checks the manifest and reports every problem at once.
func (m *Manifest) Validate() error {
	v := validate.New()

	v.Required("campaign.name", m.Campaign.Name)
	v.Required("campaign.objective", m.Campaign.Objective)
	if m.Campaign.Status != "" {
		v.OneOf("campaign.status", m.Campaign.Status, validate.DeliveryStatuses())
	}
	v.Required("adset.name", m.AdSet.Name)
	v.Required("adset.billing_event", m.AdSet.BillingEvent)
	v.Required("adset.optimization_goal", m.AdSet.OptimizationGoal)
	if m.AdSet.Status != "" {
		v.OneOf("adset.status", m.AdSet.Status, validate.DeliveryStatuses())
	}
	if m.Campaign.DailyBudget <= 0 && m.AdSet.DailyBudget <= 0 {
		v.AddError("adset.daily_budget", "a daily budget is required on the campaign or the ad set", m.AdSet.DailyBudget)
	}

	v.URL("creative.link", m.Creative.Link, []string{"http", "https"})
	if m.Creative.CallToAction != "" {
		v.OneOf("creative.call_to_action", m.Creative.CallToAction, callToActions)
	}
	if m.Creative.AdStatus != "" {
		v.OneOf("creative.ad_status", m.Creative.AdStatus, validate.DeliveryStatuses())
	}

	if len(m.Media) == 0 {
		v.AddError("media", "at least one media item is required", nil)
	}
	seen := make(map[string]string, len(m.Media))
	for i, in := range m.Media {
		field := fmt.Sprintf("media[%d]", i)
		v.Required(field+".name", in.Name)
		v.OneOf(field+".type", string(in.Type), []string{string(launch.MediaVideo), string(launch.MediaImage)})

		if in.Type == launch.MediaVideo && in.VideoID != "" {
			if in.URL != "" {
				v.MediaURL(field+".url", in.URL)
			}
		} else {
			v.MediaURL(field+".url", in.URL)
		}
		if in.FallbackURL != "" {
			v.MediaURL(field+".fallback_url", in.FallbackURL)
		}
		if in.ThumbnailURL != "" {
			v.URL(field+".thumbnail_url", in.ThumbnailURL, []string{"http", "https"})
		}

		if in.Name == "" {
			continue
		}
		key := adsplatform.TitleKey(in.Name)
		if prev, dup := seen[key]; dup {
			v.AddError(field+".name", fmt.Sprintf("duplicates %q", prev), in.Name)
			continue
		}
		seen[key] = in.Name
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// Params merges the manifest's account overrides into base and attaches the
// campaign settings.
func (m *Manifest) Params(base Account) launch.CampaignParams {
	acct := base
	if m.Account.AccountID != "" {
		acct.AccountID = m.Account.AccountID
	}
	if m.Account.PageID != "" {
		acct.PageID = m.Account.PageID
	}
	if m.Account.PixelID != "" {
		acct.PixelID = m.Account.PixelID
	}
	return launch.CampaignParams{
		AccountID: strings.TrimPrefix(acct.AccountID, "act_"),
		PageID:    acct.PageID,
		PixelID:   acct.PixelID,
		Campaign:  m.Campaign,
		AdSet:     m.AdSet,
		Creative:  m.Creative,
	}
}

// Inputs returns a copy of the media list.
func (m *Manifest) Inputs() []launch.MediaInput {
	out := make([]launch.MediaInput, len(m.Media))
	copy(out, m.Media)
	return out
}
