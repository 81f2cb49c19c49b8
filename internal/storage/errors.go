package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrDestinationMissing is returned by the pre-flight check when the
// destination bucket does not exist. It is fatal: no transfer may begin.
var ErrDestinationMissing = errors.New("destination bucket does not exist")

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}

// IsAuthExpired reports whether err means the credentials are no longer
// valid. Such errors are fatal for the whole run: every subsequent request
// would fail the same way until the caller refreshes credentials.
func IsAuthExpired(err error) bool {
	if err == nil {
		return false
	}
	switch minio.ToErrorResponse(err).Code {
	case "ExpiredToken", "InvalidToken", "TokenRefreshRequired", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return false
}

// IsTransient reports whether err is worth retrying: network blips,
// throttling, and server-side 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthExpired(err) || IsNotFound(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "Throttling", "ThrottlingException":
		return true
	}
	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dns") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout")
}
