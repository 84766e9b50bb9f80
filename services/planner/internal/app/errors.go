package app

import "errors"

var (
	ErrProjectIDRequired = errors.New("project id required")
	ErrProjectNotFound   = errors.New("project not found")
	ErrMessageRequired   = errors.New("message required")
	ErrUploadNotFound    = errors.New("upload not found")
	ErrEmailRequired     = errors.New("email required")
	// ErrInvitationInvalid covers bad signatures, unknown ids, and reuse.
	ErrInvitationInvalid = errors.New("invitation invalid")
	ErrInvitationExpired = errors.New("invitation expired")
	ErrMailJobNotFound   = errors.New("mail job not found")
	ErrInvitesDisabled   = errors.New("invitations not configured")
	ErrUploadsDisabled   = errors.New("uploads not configured")
)
