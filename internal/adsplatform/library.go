package adsplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
)

const (
	videoFields      = "id,title,status,picture"
	libraryPageLimit = 100
	maxLibraryPages  = 20
	maxIDsPerLookup  = 50
)

type videoNode struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Picture string `json:"picture"`
	Status  struct {
		VideoStatus        string `json:"video_status"`
		ProcessingProgress int    `json:"processing_progress"`
	} `json:"status"`
}

func (n videoNode) toLibraryVideo() LibraryVideo {
	return LibraryVideo{
		ID:        n.ID,
		Title:     n.Title,
		Status:    n.Status.VideoStatus,
		Thumbnail: n.Picture,
		Progress:  n.Status.ProcessingProgress,
	}
}

type libraryPage struct {
	Data   []videoNode `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// CheckLibraryByName looks up videos already in the account library whose
// title matches one of names (see TitleKey). Items are keyed by the requested
// name; when several library videos share a title a ready one is preferred.
func (c *Client) CheckLibraryByName(ctx context.Context, accountID string, names []string) (LibraryResult, error) {
	res := LibraryResult{Items: make(map[string]LibraryVideo), Rate: -1}
	if len(names) == 0 {
		return res, nil
	}

	wanted := make(map[string]string, len(names))
	for _, n := range names {
		wanted[TitleKey(n)] = n
	}

	filter, err := json.Marshal([]map[string]any{{
		"field":    "title",
		"operator": "IN",
		"value":    names,
	}})
	if err != nil {
		return res, fmt.Errorf("adsplatform: encode library filter: %w", err)
	}

	params := url.Values{}
	params.Set("fields", videoFields)
	params.Set("filtering", string(filter))
	params.Set("limit", strconv.Itoa(libraryPageLimit))

	for page := 0; page < maxLibraryPages; page++ {
		var body libraryPage
		rate, err := c.call(ctx, request{
			op:      "check_library",
			class:   ratelimit.ClassRead,
			account: accountID,
			method:  http.MethodGet,
			path:    accountPath(accountID) + "/advideos",
			params:  params,
		}, &body)
		res.Rate = max(res.Rate, rate)
		if err != nil {
			return res, err
		}

		for _, node := range body.Data {
			name, ok := wanted[TitleKey(node.Title)]
			if !ok {
				continue
			}
			v := node.toLibraryVideo()
			if prev, seen := res.Items[name]; seen && (prev.Ready() || !v.Ready()) {
				continue
			}
			res.Items[name] = v
		}

		after := body.Paging.Cursors.After
		if after == "" || body.Paging.Next == "" {
			break
		}
		params.Set("after", after)
	}
	return res, nil
}

// PollLibrary fetches the current processing state of videoIDs. Ids are
// looked up in chunks the platform accepts; results are keyed by video id.
func (c *Client) PollLibrary(ctx context.Context, accountID string, videoIDs []string) (LibraryResult, error) {
	res := LibraryResult{Items: make(map[string]LibraryVideo, len(videoIDs)), Rate: -1}

	for start := 0; start < len(videoIDs); start += maxIDsPerLookup {
		end := min(start+maxIDsPerLookup, len(videoIDs))

		params := url.Values{}
		params.Set("ids", strings.Join(videoIDs[start:end], ","))
		params.Set("fields", videoFields)

		var body map[string]videoNode
		rate, err := c.call(ctx, request{
			op:      "poll_library",
			class:   ratelimit.ClassRead,
			account: accountID,
			method:  http.MethodGet,
			params:  params,
		}, &body)
		res.Rate = max(res.Rate, rate)
		if err != nil {
			return res, err
		}

		for id, node := range body {
			if node.ID == "" {
				node.ID = id
			}
			res.Items[id] = node.toLibraryVideo()
		}
	}
	return res, nil
}
