// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates a stored value could not be decoded.
	ErrCorrupt = errors.New("corrupt stored value")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates failed authentication of an API caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the caller exceeded the request budget.
	ErrRateLimited = errors.New("rate limited")
)

// Entitlement sentinels.
var (
	// ErrInsufficientCredits indicates the balance does not cover the requested amount.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotPaid indicates the action requires a user who has purchased at least once.
	ErrNotPaid = errors.New("paid plan required")

	// ErrCooldown indicates the daily free generation was already used.
	ErrCooldown = errors.New("free generation cooling down")
)

// Generation pipeline sentinels.
var (
	// ErrPlanning indicates the scene plan was empty or not a JSON array of strings.
	ErrPlanning = errors.New("could not plan scenes")

	// ErrSceneImageMissing indicates an image response carried no image part.
	ErrSceneImageMissing = errors.New("scene image missing")

	// ErrPermissionDenied is returned by a provider client when the credential was rejected.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoCredential indicates no provider credential is configured.
	ErrNoCredential = errors.New("no provider credential")

	// ErrAuthorization indicates the generation service denied permission.
	ErrAuthorization = errors.New("generation not authorized")

	// ErrGeneration indicates any other generation failure.
	ErrGeneration = errors.New("generation failed")

	// ErrJobActive indicates a generation job is already running.
	ErrJobActive = errors.New("generation job already active")

	// ErrNoJob indicates there is no generation job to inspect or cancel.
	ErrNoJob = errors.New("no generation job")

	// ErrExport indicates document assembly failed.
	ErrExport = errors.New("export failed")
)
