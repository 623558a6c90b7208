package conditional

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// ETagFor returns the quoted content hash of body.
func ETagFor(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// ETag hashes successful response bodies into an ETag header and answers
// 304 Not Modified when the request's If-None-Match names the same hash.
// The handler always runs; only the transfer is saved.
func ETag() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bw, restore := capture(c)
			err := next(c)
			restore()

			if err != nil {
				if flushErr := bw.flush(); flushErr != nil {
					slog.Warn("failed to write response", "error", flushErr)
				}
				return err
			}
			if !bw.written() {
				return nil
			}

			body := bw.body.Bytes()
			if bw.status != http.StatusOK || len(body) == 0 {
				return bw.flush()
			}

			tag := EntityTag(ETagFor(body))
			c.Response().Header().Set(headerETag, tag.Value)
			if ifNoneMatch(c.Request().Header.Get(headerIfNoneMatch), tag) {
				etagNotModified.Inc()
				return bw.send(http.StatusNotModified, nil)
			}
			return bw.send(bw.status, body)
		}
	}
}

// ifNoneMatch reports whether the header lists tag or is "*".
// Weak tags compare by their opaque value.
func ifNoneMatch(header string, tag Validator) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || EntityTag(candidate).Equal(tag) {
			return true
		}
	}
	return false
}
