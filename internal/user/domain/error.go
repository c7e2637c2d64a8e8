package domain

import "errors"

var (
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidPassword       = errors.New("invalid_password")
	ErrInvalidPhoneNumber    = errors.New("invalid_phone_number")
	ErrInvalidNationalID     = errors.New("invalid_national_id")
	ErrInvalidSuperuserFlags = errors.New("invalid_superuser_flags")
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrUserExists            = errors.New("user_exists")
	ErrUserNotFound          = errors.New("user_not_found")
	ErrOwnerProtected        = errors.New("owner_protected")
)
