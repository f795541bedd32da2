package services

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrCommandNotFound = errors.New("command not found")
	ErrUsernameTaken   = errors.New("username already registered")
	ErrEmailTaken      = errors.New("email already registered")
	ErrEmptyCommand    = errors.New("no command text or audio provided")
	ErrInvalidAudio    = errors.New("audio_data is not valid base64 audio")
)
