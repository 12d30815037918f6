package launch

import "errors"

var (
	ErrAlreadyRunning = errors.New("launch: a run is already in progress")
	ErrUnknownPhase   = errors.New("launch: unknown phase")
	ErrNoAdSet        = errors.New("launch: ad set has not been created")
	ErrNoMedia        = errors.New("launch: no media items")
	ErrDuplicateName  = errors.New("launch: duplicate media name")
	ErrInvalidMedia   = errors.New("launch: invalid media item")
	ErrCampaignSetup  = errors.New("launch: campaign setup failed")
)
