package service

import "errors"

var (
	// ErrBountyNotFound indicates the bounty id does not resolve.
	ErrBountyNotFound = errors.New("bounty not found")
	// ErrBountyClosed indicates the bounty no longer accepts submissions or payouts.
	ErrBountyClosed = errors.New("bounty is not open")
	// ErrSubmissionNotInBounty indicates a submission id that does not belong to the bounty.
	ErrSubmissionNotInBounty = errors.New("submission does not belong to bounty")
	// ErrOwnerRequired indicates a profile query with neither user id nor addresses.
	ErrOwnerRequired = errors.New("userId or addresses is required")
	// ErrInvalidTitle indicates a bounty title with no text left after sanitizing.
	ErrInvalidTitle = errors.New("title must contain text")

	// ErrReviewNotConfigured indicates no AI judge credential is configured.
	ErrReviewNotConfigured = errors.New("AI reviewer not configured")
	// ErrNoSubmissions indicates the bounty has nothing to review.
	ErrNoSubmissions = errors.New("no submissions found")
	// ErrReviewInProgress indicates another review of the same bounty is running.
	ErrReviewInProgress = errors.New("review already in progress for this bounty")
	// ErrReviewUnavailable indicates the AI backend could not open a stream.
	ErrReviewUnavailable = errors.New("AI reviewer unavailable")
)
