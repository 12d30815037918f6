package launch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/BrianApollo/Ops-dashboard/internal/adsplatform"
	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/metrics"
	"github.com/BrianApollo/Ops-dashboard/internal/telemetry"
)

// itemEvent is a per-item result logged after the store lock is released.
type itemEvent struct {
	name    string
	outcome string
	reason  string
}

// checkStage fast-forwards videos that already exist in the account library.
// Lookup failures are logged and ignored.
func (c *Controller) checkStage(ctx context.Context) {
	if c.halted(ctx) {
		return
	}
	c.setPhase(PhaseChecking)

	c.mu.Lock()
	names := c.store.uploadNames()
	c.mu.Unlock()
	if len(names) == 0 {
		return
	}

	logger := xglog.WithComponentFromContext(ctx, "launch")
	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.check",
		telemetry.StageAttributes(xglog.RunIDFromContext(ctx), RunCheck, len(names))...)

	res, err := c.platform.CheckLibraryByName(ctx, c.params.AccountID, names)
	c.setRate(res.Rate)
	if err != nil {
		metrics.RecordBatch(RunCheck, "transport_error", len(names))
		logger.Warn().
			Str(xglog.FieldEvent, "check.failed").
			Err(err).
			Msg("library check failed, continuing with uploads")
		telemetry.EndSpan(span, err, "transport")
		return
	}
	metrics.RecordBatch(RunCheck, "ok", len(names))

	var matched int
	c.mutate(func(s *mediaStore) { matched = s.applyLibrary(res.Items) })
	logger.Info().
		Str(xglog.FieldEvent, "check.done").
		Int("looked_up", len(names)).
		Int("matched", matched).
		Float64(xglog.FieldRate, res.Rate).
		Msg("library check complete")
	telemetry.EndSpan(span, nil, "")
}

// uploadStage uploads every pending video at the upload stage.
func (c *Controller) uploadStage(ctx context.Context) {
	if c.halted(ctx) {
		return
	}

	c.mu.Lock()
	claims := c.store.claim(func(m MediaItem) bool {
		return m.Type == MediaVideo && m.Stage == StageUpload
	})
	c.mu.Unlock()
	if len(claims) == 0 {
		return
	}
	c.emit()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.upload",
		telemetry.StageAttributes(xglog.RunIDFromContext(ctx), RunUpload, len(claims))...)
	defer telemetry.EndSpan(span, nil, "")

	c.runBatches(ctx, RunUpload, c.opts.UploadBatchSize, c.opts.UploadStagger, claims, c.dispatchUpload)
}

func (c *Controller) dispatchUpload(ctx context.Context, index int, batch []claim) {
	ctx = xglog.ContextWithBatchID(ctx, fmt.Sprintf("%s-%d", RunUpload, index+1))
	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.upload.batch",
		telemetry.BatchAttributes(RunUpload, index, len(batch))...)
	logger := xglog.WithComponentFromContext(ctx, "launch")

	reqs := make([]adsplatform.UploadRequest, len(batch))
	for i, cl := range batch {
		reqs[i] = adsplatform.UploadRequest{Name: cl.item.Name, URL: cl.item.sendURL()}
	}

	res, err := c.platform.UploadVideoBatch(ctx, c.params.AccountID, reqs)
	c.setRate(res.Rate)
	telemetry.EndSpan(span, err, "transport")

	if err != nil && ctx.Err() != nil {
		c.mutate(func(s *mediaStore) { s.release(batch) })
		return
	}

	var events []itemEvent
	if err != nil {
		metrics.RecordBatch(RunUpload, "transport_error", len(batch))
		logger.Warn().
			Str(xglog.FieldEvent, "upload.batch_failed").
			Int("size", len(batch)).
			Err(err).
			Msg("upload batch failed")
		c.mutate(func(s *mediaStore) {
			for _, cl := range batch {
				events = append(events, itemEvent{cl.item.Name, s.uploadFailed(cl.index, err.Error()), err.Error()})
			}
		})
	} else {
		metrics.RecordBatch(RunUpload, "ok", len(batch))
		c.mutate(func(s *mediaStore) {
			for i, cl := range batch {
				r := resultAt(res.Items, i)
				if id, ok := r.ID(); ok {
					s.uploadSucceeded(cl.index, id)
					continue
				}
				events = append(events, itemEvent{cl.item.Name, s.uploadFailed(cl.index, r.Reason()), r.Reason()})
			}
		})
	}

	c.logFailures(ctx, StageUpload, events)
	logger.Info().
		Str(xglog.FieldEvent, "upload.batch_done").
		Int("size", len(batch)).
		Int("failed", len(events)).
		Float64(xglog.FieldRate, res.Rate).
		Msg("upload batch processed")
}

// pollStage looks up every video waiting on remote processing in one call.
// A failed lookup is charged to every video in it.
func (c *Controller) pollStage(ctx context.Context) {
	if c.halted(ctx) {
		return
	}

	c.mu.Lock()
	targets := c.store.pollTargets()
	c.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	logger := xglog.WithComponentFromContext(ctx, "launch")
	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.poll",
		telemetry.StageAttributes(xglog.RunIDFromContext(ctx), RunPoll, len(ids))...)

	res, err := c.platform.PollLibrary(ctx, c.params.AccountID, ids)
	c.setRate(res.Rate)
	telemetry.EndSpan(span, err, "transport")
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordBatch(RunPoll, "transport_error", len(ids))
		logger.Warn().
			Str(xglog.FieldEvent, "poll.failed").
			Int("videos", len(ids)).
			Err(err).
			Msg("poll failed")
		var events []itemEvent
		c.mutate(func(s *mediaStore) {
			for _, id := range ids {
				idx := targets[id]
				it := s.items[idx]
				if it.Stage != StagePoll || it.FBVideoID != id {
					continue
				}
				events = append(events, itemEvent{it.Name, s.pollFailed(idx, err.Error()), err.Error()})
			}
		})
		c.logFailures(ctx, StagePoll, events)
		return
	}
	metrics.RecordBatch(RunPoll, "ok", len(ids))

	var (
		ready  int
		events []itemEvent
	)
	c.mutate(func(s *mediaStore) {
		for _, id := range ids {
			idx := targets[id]
			it := s.items[idx]
			v, ok := res.Items[id]
			if !ok || it.Stage != StagePoll || it.FBVideoID != id {
				continue
			}
			switch {
			case v.Ready():
				s.processed(idx, v.Thumbnail)
				ready++
			case v.Failed():
				reason := "remote video processing failed"
				events = append(events, itemEvent{it.Name, s.processingFailed(idx, reason), reason})
			}
		}
	})

	c.logFailures(ctx, StagePoll, events)
	logger.Info().
		Str(xglog.FieldEvent, "poll.done").
		Int("videos", len(ids)).
		Int("ready", ready).
		Float64(xglog.FieldRate, res.Rate).
		Msg("poll complete")
}

// adsStage creates ads for every pending item at the ad stage.
func (c *Controller) adsStage(ctx context.Context) error {
	if c.halted(ctx) {
		return nil
	}
	adsetID := c.adSetID()
	if adsetID == "" {
		return ErrNoAdSet
	}

	c.mu.Lock()
	claims := c.store.claim(func(m MediaItem) bool { return m.Stage == StageAd })
	c.mu.Unlock()
	if len(claims) == 0 {
		return nil
	}
	c.emit()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.ads",
		telemetry.StageAttributes(xglog.RunIDFromContext(ctx), RunAds, len(claims))...)
	defer telemetry.EndSpan(span, nil, "")

	c.runBatches(ctx, RunAds, c.opts.AdBatchSize, 0, claims, func(ctx context.Context, index int, batch []claim) {
		c.dispatchAds(ctx, adsetID, index, batch)
	})
	return nil
}

func (c *Controller) dispatchAds(ctx context.Context, adsetID string, index int, batch []claim) {
	ctx = xglog.ContextWithBatchID(ctx, fmt.Sprintf("%s-%d", RunAds, index+1))
	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.ads.batch",
		telemetry.BatchAttributes(RunAds, index, len(batch))...)
	logger := xglog.WithComponentFromContext(ctx, "launch")

	reqs := make([]adsplatform.AdRequest, len(batch))
	for i, cl := range batch {
		reqs[i] = adRequest(cl.item)
	}

	res, err := c.platform.CreateAdsBatch(ctx, c.params.AccountID, adsetID, c.params.PageID, reqs, c.params.Creative)
	c.setRate(res.Rate)
	telemetry.EndSpan(span, err, "transport")

	if err != nil && ctx.Err() != nil {
		c.mutate(func(s *mediaStore) { s.release(batch) })
		return
	}

	var (
		created int
		events  []itemEvent
	)
	if err != nil {
		metrics.RecordBatch(RunAds, "transport_error", len(batch))
		logger.Warn().
			Str(xglog.FieldEvent, "ads.batch_failed").
			Int("size", len(batch)).
			Err(err).
			Msg("ad batch failed")
		c.mutate(func(s *mediaStore) {
			for _, cl := range batch {
				events = append(events, itemEvent{cl.item.Name, s.adFailed(cl.index, err.Error()), err.Error()})
			}
		})
	} else {
		metrics.RecordBatch(RunAds, "ok", len(batch))
		c.mutate(func(s *mediaStore) {
			for i, cl := range batch {
				r := resultAt(res.Items, i)
				if id, ok := r.ID(); ok {
					s.adSucceeded(cl.index, id)
					created++
					continue
				}
				events = append(events, itemEvent{cl.item.Name, s.adFailed(cl.index, r.Reason()), r.Reason()})
			}
		})
	}

	for i := 0; i < created; i++ {
		metrics.IncItemCompleted()
	}
	c.logFailures(ctx, StageAd, events)
	logger.Info().
		Str(xglog.FieldEvent, "ads.batch_done").
		Int("size", len(batch)).
		Int("created", created).
		Int("failed", len(events)).
		Float64(xglog.FieldRate, res.Rate).
		Msg("ad batch processed")
}

func adRequest(it MediaItem) adsplatform.AdRequest {
	req := adsplatform.AdRequest{Name: it.Name, Type: string(it.Type)}
	if it.Type == MediaVideo {
		req.VideoID = it.FBVideoID
		req.ThumbnailURL = it.ThumbnailURL
	} else {
		req.ImageURL = it.URL
	}
	return req
}

// campaignStage creates the campaign and ad set once. Any failure is fatal.
func (c *Controller) campaignStage(ctx context.Context) error {
	if c.halted(ctx) {
		return nil
	}

	c.mu.Lock()
	campaignID, adsetID := c.campaignID, c.adsetID
	c.mu.Unlock()
	if campaignID != "" && adsetID != "" {
		return nil
	}
	c.setPhase(PhaseCreatingCampaign)

	logger := xglog.WithComponentFromContext(ctx, "launch")
	ctx, span := telemetry.StartSpan(ctx, tracerName, "launch.campaign",
		telemetry.StageAttributes(xglog.RunIDFromContext(ctx), RunCampaign, 0)...)

	if campaignID == "" {
		res, err := c.platform.CreateCampaign(ctx, c.params.AccountID, c.params.Campaign)
		if err = createError(res, err); err != nil {
			err = fmt.Errorf("%w: create campaign: %w", ErrCampaignSetup, err)
			telemetry.EndSpan(span, err, "campaign")
			return c.fail(ctx, err)
		}
		c.setRate(res.Rate)
		c.mu.Lock()
		c.campaignID = res.ID
		c.mu.Unlock()
		campaignID = res.ID
		logger.Info().Str(xglog.FieldEvent, "campaign.created").Str("campaign_id", res.ID).Msg("campaign created")
		c.emit()
	}

	res, err := c.platform.CreateAdSet(ctx, c.params.AccountID, campaignID, c.params.AdSet, c.params.PixelID)
	if err = createError(res, err); err != nil {
		err = fmt.Errorf("%w: create ad set: %w", ErrCampaignSetup, err)
		telemetry.EndSpan(span, err, "adset")
		return c.fail(ctx, err)
	}
	c.setRate(res.Rate)
	c.mu.Lock()
	c.adsetID = res.ID
	c.mu.Unlock()
	logger.Info().Str(xglog.FieldEvent, "adset.created").Str("adset_id", res.ID).Msg("ad set created")
	c.emit()

	telemetry.EndSpan(span, nil, "")
	return nil
}

func createError(res adsplatform.CreateResult, err error) error {
	switch {
	case err != nil:
		return err
	case res.Error != nil:
		return res.Error
	case res.ID == "":
		return errors.New("platform returned no id")
	}
	return nil
}

func resultAt(items []adsplatform.BatchItemResult, i int) adsplatform.BatchItemResult {
	if i < len(items) {
		return items[i]
	}
	return adsplatform.BatchItemResult{}
}

func (c *Controller) logFailures(ctx context.Context, stage Stage, events []itemEvent) {
	if len(events) == 0 {
		return
	}
	logger := xglog.WithComponentFromContext(ctx, "launch")
	for _, e := range events {
		metrics.IncItemFailure(string(stage), e.outcome)
		ev := logger.Warn()
		if e.outcome == outcomeExhausted {
			ev = logger.Error()
		}
		ev.Str(xglog.FieldEvent, string(stage)+".item_failed").
			Str(xglog.FieldItem, e.name).
			Str(xglog.FieldStage, string(stage)).
			Str("outcome", e.outcome).
			Str("reason", e.reason).
			Msg("media item failed")
	}
}
