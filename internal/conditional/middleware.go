// Package conditional serves cached portal reads. A read can be answered with
// 304 Not Modified when the client proves its copy is current, with a view
// cached in process when nothing changed since it was computed, or by running
// the handler and recording the result.
package conditional

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tidwall/gjson"

	"vendorrisk/internal/core"
)

// Registry is the part of the freshness registry the middleware needs.
type Registry interface {
	Get(key string) (int64, bool)
	CompareAndTouch(key string, observed int64) (int64, bool)
}

// KeyFunc resolves the cache key of a request. It runs before the handler, so
// it must only use the request and the authenticated user. A returned
// *core.APIError reaches the client as is; any other error is a 400.
type KeyFunc func(c echo.Context) (string, error)

// Static returns a KeyFunc that always yields key.
func Static(key string) KeyFunc {
	return func(echo.Context) (string, error) { return key, nil }
}

// Config configures the conditional read middleware.
type Config struct {
	Skipper   middleware.Skipper
	Registry  Registry
	Responses *ResponseCache
	Key       KeyFunc
}

// Middleware wraps a read endpoint with the freshness registry and response
// cache under the key produced by key.
func Middleware(registry Registry, responses *ResponseCache, key KeyFunc) echo.MiddlewareFunc {
	return WithConfig(Config{Registry: registry, Responses: responses, Key: key})
}

// WithConfig returns the middleware for cfg.
func WithConfig(cfg Config) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	if cfg.Registry == nil || cfg.Key == nil {
		panic("conditional: registry and key func are required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			key, err := cfg.Key(c)
			if err != nil {
				var apiErr *core.APIError
				if errors.As(err, &apiErr) {
					return apiErr
				}
				return core.NewInvalidRequestError("invalid request parameters", err)
			}

			refresh := c.QueryParam("refresh") == "true"
			client := clientTimestamp(c)
			serverStamp, _ := cfg.Registry.Get(key)

			if !refresh {
				if client.Equal(Timestamp(serverStamp)) {
					requestsTotal.WithLabelValues(outcomeNotModified).Inc()
					return c.NoContent(http.StatusNotModified)
				}
				if cfg.Responses != nil {
					if entry, ok := cfg.Responses.Get(key); ok && entry.Stamp >= serverStamp {
						requestsTotal.WithLabelValues(outcomeLocalHit).Inc()
						return c.JSON(http.StatusOK, core.Envelope{
							Success:     true,
							Message:     entry.Message,
							Data:        entry.Data,
							LastUpdated: serverStamp,
						})
					}
				}
			}

			return serve(c, next, cfg, key, serverStamp, refresh)
		}
	}
}

func serve(c echo.Context, next echo.HandlerFunc, cfg Config, key string, observed int64, refresh bool) error {
	bw, restore := capture(c)
	err := next(c)
	restore()

	if err != nil {
		requestsTotal.WithLabelValues(outcomeUncacheable).Inc()
		if flushErr := bw.flush(); flushErr != nil {
			slog.Warn("failed to write response", "key", key, "error", flushErr)
		}
		return err
	}
	if !bw.written() {
		requestsTotal.WithLabelValues(outcomeUncacheable).Inc()
		return nil
	}

	body := bw.body.Bytes()
	data, message, ok := cacheable(bw.status, body)
	if !ok {
		requestsTotal.WithLabelValues(outcomeUncacheable).Inc()
		return bw.flush()
	}

	stamp, ok := cfg.Registry.CompareAndTouch(key, observed)
	if !ok {
		// A write landed while the handler ran; this body may predate it.
		requestsTotal.WithLabelValues(outcomeUncacheable).Inc()
		return bw.flush()
	}

	if cfg.Responses != nil {
		cfg.Responses.Add(key, Entry{Data: data, Message: message, Stamp: stamp})
	}

	stamped, err := withLastUpdated(body, stamp)
	if err != nil {
		slog.Warn("failed to attach lastUpdated", "key", key, "error", err)
		stamped = body
	}

	outcome := outcomeMiss
	if refresh {
		outcome = outcomeBypass
	}
	requestsTotal.WithLabelValues(outcome).Inc()
	return bw.send(bw.status, stamped)
}

// clientTimestamp reads ?timestamp= first, then a :timestamp route param.
func clientTimestamp(c echo.Context) Validator {
	if raw := c.QueryParam("timestamp"); raw != "" {
		return ParseTimestamp(raw)
	}
	return ParseTimestamp(c.Param("timestamp"))
}

// cacheable reports whether a handler response is a successful envelope with
// data, and returns the data and message.
func cacheable(status int, body []byte) (json.RawMessage, string, bool) {
	if !isSuccess(status) || !gjson.ValidBytes(body) {
		return nil, "", false
	}
	if success := gjson.GetBytes(body, "success"); success.Type != gjson.True {
		return nil, "", false
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, "", false
	}
	raw := json.RawMessage(data.Raw)
	return raw, gjson.GetBytes(body, "message").String(), true
}

// withLastUpdated sets the envelope's lastUpdated field to stamp.
func withLastUpdated(body []byte, stamp int64) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(stamp)
	if err != nil {
		return nil, err
	}
	fields["lastUpdated"] = encoded
	return json.Marshal(fields)
}
