package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RewardErrorInvalidSignature    = "REWARD_INVALID_SIGNATURE"
	RewardErrorUnrecognizedValue   = "REWARD_UNRECOGNIZED_VALUE"
	RewardErrorForbidden           = "REWARD_FORBIDDEN"
	RewardErrorMisconfiguredSecret = "REWARD_MISCONFIGURED_SECRET"
	RewardErrorInternal            = "REWARD_INTERNAL_ERROR"
)

// InvalidSignatureError marks a callback as cryptographically or
// structurally unverifiable. Always safe to reject with no side effects.
func InvalidSignatureError(message string, metadata map[string]any) error {
	return rewardError(
		message,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		RewardErrorInvalidSignature,
		metadata,
	)
}

// UnrecognizedValueError marks a well-formed callback whose reward-type
// token maps to nothing the system understands.
func UnrecognizedValueError(message string, metadata map[string]any) error {
	return rewardError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		RewardErrorUnrecognizedValue,
		metadata,
	)
}

// ForbiddenError marks a recognized callback currently disallowed by
// live business configuration.
func ForbiddenError(message string, metadata map[string]any) error {
	return rewardError(
		message,
		goerrors.CategoryAuthz,
		http.StatusForbidden,
		RewardErrorForbidden,
		metadata,
	)
}

// MisconfiguredSecretError marks a deployment-level absence of a
// required signing secret, key source, or verifier wiring. It is a
// server fault, never a request fault.
func MisconfiguredSecretError(message string, metadata map[string]any) error {
	return rewardError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		RewardErrorMisconfiguredSecret,
		metadata,
	)
}

func WrapInvalidSignature(source error, message string, metadata map[string]any) error {
	return rewardWrapError(
		source,
		goerrors.CategoryAuth,
		message,
		http.StatusUnauthorized,
		RewardErrorInvalidSignature,
		metadata,
	)
}

func WrapMisconfiguredSecret(source error, message string, metadata map[string]any) error {
	return rewardWrapError(
		source,
		goerrors.CategoryInternal,
		message,
		http.StatusInternalServerError,
		RewardErrorMisconfiguredSecret,
		metadata,
	)
}

func IsInvalidSignature(err error) bool { return hasTextCode(err, RewardErrorInvalidSignature) }

func IsUnrecognizedValue(err error) bool { return hasTextCode(err, RewardErrorUnrecognizedValue) }

func IsForbidden(err error) bool { return hasTextCode(err, RewardErrorForbidden) }

func IsMisconfiguredSecret(err error) bool {
	return hasTextCode(err, RewardErrorMisconfiguredSecret)
}

// HTTPStatus implements the boundary contract: signature and value
// failures are client errors, forbidden is access denied, deployment
// faults and unclassified collaborator failures are server errors. A
// nil error, including the deduped-replay case, must be acknowledged
// with 200 so upstream networks stop retrying.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return richErr.Code
		}
		switch richErr.Category {
		case goerrors.CategoryAuth:
			return http.StatusUnauthorized
		case goerrors.CategoryAuthz:
			return http.StatusForbidden
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return http.StatusBadRequest
		case goerrors.CategoryNotFound:
			return http.StatusNotFound
		case goerrors.CategoryConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

func rewardError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func rewardWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return rewardError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}
