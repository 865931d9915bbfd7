package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation              ErrorType = "VALIDATION_ERROR"
	ErrorTypeUnauthorized            ErrorType = "UNAUTHORIZED"
	ErrorTypeDownloadToolUnavailable ErrorType = "DOWNLOAD_TOOL_UNAVAILABLE"
	ErrorTypeDownload                ErrorType = "DOWNLOAD_ERROR"
	ErrorTypeFileNotFound            ErrorType = "FILE_NOT_FOUND"
	ErrorTypeDecode                  ErrorType = "DECODE_ERROR"
	ErrorTypeInference               ErrorType = "INFERENCE_ERROR"
	ErrorTypeInternal                ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewUnauthorizedError creates a new authentication error (401)
func NewUnauthorizedError(message string, errorCode string) *AppError {
	return &AppError{
		Type:          ErrorTypeUnauthorized,
		Message:       message,
		StatusCode:    http.StatusUnauthorized,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Provide a valid bearer token.",
	}
}

// NewDownloadToolUnavailableError is returned when no downloader binary answers its version probe (500)
func NewDownloadToolUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeDownloadToolUnavailable,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     "NO_DOWNLOADER",
		IsOperational: false,
		Recovery:      "Install yt-dlp or youtube-dl on the server PATH.",
		Err:           err,
	}
}

// NewDownloadError creates a new download error (500)
func NewDownloadError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeDownload,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Verify the URL is a public video and try again.",
		Err:           err,
	}
}

// NewFileNotFoundError creates a new missing-file error (500)
func NewFileNotFoundError(path string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeFileNotFound,
		Message:       fmt.Sprintf("the audio file %s does not exist", path),
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     "AUDIO_FILE_NOT_FOUND",
		IsOperational: true,
		Err:           err,
	}
}

// NewDecodeError creates a new audio decoding error (500)
func NewDecodeError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeDecode,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Try a different video; the audio track could not be decoded.",
		Err:           err,
	}
}

// NewInferenceError creates a new classifier error (500)
func NewInferenceError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInference,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check that the classifier service is running.",
		Err:           err,
	}
}

// NewInternalError creates a new internal error (500)
func NewInternalError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: false,
		Err:           err,
	}
}
