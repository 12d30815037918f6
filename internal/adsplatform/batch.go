package adsplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
)

type batchOp struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	Body        string `json:"body,omitempty"`
}

type batchReply struct {
	Code int    `json:"code"`
	Body string `json:"body"`
}

// ID extracts the created object id from a successful entry.
func (r BatchItemResult) ID() (string, bool) {
	if r.Code != http.StatusOK {
		return "", false
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil || body.ID == "" {
		return "", false
	}
	return body.ID, true
}

// Reason describes why an entry did not produce an id.
func (r BatchItemResult) Reason() string {
	if r.Code == 0 {
		return "no result returned for batch entry"
	}
	var env errorEnvelope
	if err := json.Unmarshal([]byte(r.Body), &env); err == nil && env.Error != nil {
		env.Error.HTTPStatus = r.Code
		return env.Error.Error()
	}
	if r.Code == http.StatusOK {
		return "response without id"
	}
	return fmt.Sprintf("HTTP %d: %s", r.Code, truncate(r.Body, maxBodyInError))
}

// batch submits ops through the batch endpoint. The result has exactly one
// entry per op; entries the platform left out or returned as null are zero.
func (c *Client) batch(ctx context.Context, op, accountID string, ops []batchOp) (BatchResult, error) {
	res := BatchResult{Items: make([]BatchItemResult, len(ops)), Rate: -1}
	if len(ops) == 0 {
		return res, nil
	}

	encoded, err := json.Marshal(ops)
	if err != nil {
		return res, fmt.Errorf("adsplatform: encode batch: %w", err)
	}
	params := url.Values{}
	params.Set("batch", string(encoded))
	params.Set("include_headers", "false")

	var replies []*batchReply
	rate, err := c.call(ctx, request{
		op:      op,
		class:   ratelimit.ClassBatch,
		account: accountID,
		method:  http.MethodPost,
		params:  params,
	}, &replies)
	res.Rate = rate
	if err != nil {
		return res, err
	}

	for i := range res.Items {
		if i < len(replies) && replies[i] != nil {
			res.Items[i] = BatchItemResult{Code: replies[i].Code, Body: replies[i].Body}
		}
	}
	return res, nil
}

// UploadVideoBatch asks the platform to fetch each request URL into the
// account library, using the request name as the video title.
func (c *Client) UploadVideoBatch(ctx context.Context, accountID string, reqs []UploadRequest) (BatchResult, error) {
	ops := make([]batchOp, 0, len(reqs))
	for _, r := range reqs {
		body := url.Values{}
		body.Set("name", r.Name)
		body.Set("title", r.Name)
		body.Set("file_url", r.URL)
		ops = append(ops, batchOp{
			Method:      http.MethodPost,
			RelativeURL: accountPath(accountID) + "/advideos",
			Body:        body.Encode(),
		})
	}
	return c.batch(ctx, "upload_batch", accountID, ops)
}

// CreateAdsBatch creates one ad per request in adsetID with the shared creative.
func (c *Client) CreateAdsBatch(ctx context.Context, accountID, adsetID, pageID string, ads []AdRequest, creative CreativeConfig) (BatchResult, error) {
	status := creative.AdStatus
	if status == "" {
		status = "PAUSED"
	}

	ops := make([]batchOp, 0, len(ads))
	for _, ad := range ads {
		spec, err := json.Marshal(map[string]any{
			"name":              ad.Name,
			"object_story_spec": storySpec(pageID, ad, creative),
		})
		if err != nil {
			return BatchResult{}, fmt.Errorf("adsplatform: encode creative for %q: %w", ad.Name, err)
		}

		body := url.Values{}
		body.Set("name", ad.Name)
		body.Set("adset_id", adsetID)
		body.Set("status", status)
		body.Set("creative", string(spec))
		ops = append(ops, batchOp{
			Method:      http.MethodPost,
			RelativeURL: accountPath(accountID) + "/ads",
			Body:        body.Encode(),
		})
	}
	return c.batch(ctx, "ads_batch", accountID, ops)
}

func storySpec(pageID string, ad AdRequest, cr CreativeConfig) map[string]any {
	spec := map[string]any{"page_id": pageID}

	var cta map[string]any
	if cr.CallToAction != "" {
		cta = map[string]any{"type": strings.ToUpper(cr.CallToAction)}
		if cr.Link != "" {
			cta["value"] = map[string]any{"link": cr.Link}
		}
	}

	if ad.Type == MediaVideo {
		data := map[string]any{
			"video_id":  ad.VideoID,
			"image_url": ad.ThumbnailURL,
			"message":   cr.Message,
			"title":     cr.Headline,
		}
		if cr.Description != "" {
			data["link_description"] = cr.Description
		}
		if cta != nil {
			data["call_to_action"] = cta
		}
		spec["video_data"] = data
		return spec
	}

	data := map[string]any{
		"picture": ad.ImageURL,
		"link":    cr.Link,
		"message": cr.Message,
		"name":    cr.Headline,
	}
	if cr.Description != "" {
		data["description"] = cr.Description
	}
	if cta != nil {
		data["call_to_action"] = cta
	}
	spec["link_data"] = data
	return spec
}
