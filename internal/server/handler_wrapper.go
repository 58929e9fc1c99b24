// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/ipgeo"
	"github.com/impa/website/internal/server/dto"
	"github.com/impa/website/internal/server/handlers"
	"github.com/impa/website/internal/server/ratelimit"
	"github.com/impa/website/internal/server/reqctx"
)

// env is what every wrapped handler needs besides its own handler struct.
type env struct {
	svc     *handlers.Services
	geo     *ipgeo.Checker
	tiers   *ratelimit.Tiers
	maxBody int64
}

// addRequestMetadataToContext adds client IP, country and User-Agent to the
// context.
func (e *env) addRequestMetadataToContext(ctx context.Context, r *http.Request) context.Context {
	ip := reqctx.GetClientIP(r)
	ctx = reqctx.WithClientIP(ctx, ip)
	ctx = reqctx.WithCountryCode(ctx, e.geo.CountryCode(ip))
	ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

var (
	errUnauthorized   = errors.New("unauthorized")
	errInvalidAuthHdr = errors.New("invalid authorization header")
)

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errUnauthorized
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errInvalidAuthHdr
	}
	return token, nil
}

// authenticate validates the bearer token and records the user in the
// context.
func (e *env) authenticate(ctx context.Context, r *http.Request) (*auth.User, context.Context, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, ctx, err
	}
	user, claims, err := e.svc.Auth.Verify(token)
	if err != nil {
		return nil, ctx, err
	}
	ctx = reqctx.WithUser(ctx, &user)
	ctx = reqctx.WithTokenString(ctx, token)
	ctx = reqctx.WithTokenID(ctx, claims.ID)
	return &user, ctx, nil
}

// serveEvents upgrades to the event stream. Browsers cannot set headers on a
// websocket, so the admin token may also come in the token query parameter.
// Without a token the client gets the public stream.
func (e *env) serveEvents(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errUnauthorized) {
			token, err = r.URL.Query().Get("token"), nil
		}
		if err != nil {
			writeError(r.Context(), w, dto.Unauthorized("Invalid authorization header"))
			return
		}
		admin := false
		if token != "" {
			if _, _, err := e.svc.Auth.Verify(token); err != nil {
				writeError(r.Context(), w, dto.Unauthorized("Invalid or expired token"))
				return
			}
			admin = true
		}
		h.Serve(w, r, admin)
	}
}

// checkRateLimit checks the tier's budget for the client and writes the
// rate limit headers. Returns whether the request should proceed.
func checkRateLimit(ctx context.Context, w http.ResponseWriter, tier *ratelimit.Tier, client string) bool {
	if tier == nil {
		return true
	}
	result := tier.Limiter.Allow(ratelimit.Key(tier, client))
	ratelimit.WriteHeaders(w, result)
	if !result.Allowed {
		slog.WarnContext(ctx, "Rate limit exceeded", "tier", tier.Name, "client", client)
		writeError(ctx, w, dto.RateLimitExceeded(int(result.RetryAfter.Seconds())))
		return false
	}
	return true
}

// readAndDecodeBody reads the request body with size limit and decodes JSON
// into input. Returns false if an error occurred and was written to the
// response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBody int64) bool {
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeError(ctx, w, dto.BadRequest("Failed to read request body"))
		return false
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
				writeError(ctx, w, dto.BadRequest("Content-Type must be application/json"))
				return false
			}
		}
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			writeError(ctx, w, dto.BadRequest("Invalid request body").WithDetail("reason", err.Error()))
			return false
		}
	}
	return true
}

// parseRequest decodes the body, fills path and query parameters and
// validates the result.
func parseRequest[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request, maxBody int64) (PtrIn, bool) {
	input := new(In)
	if !readAndDecodeBody(ctx, w, r, input, maxBody) {
		return nil, false
	}
	populatePathParams(r, input)
	populateQueryParams(r, input)
	if err := PtrIn(input).Validate(); err != nil {
		handleValidationError(ctx, w, err)
		return nil, false
	}
	return PtrIn(input), true
}

// Wrap wraps a public handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters are extracted from struct fields tagged `path:"name"` and
// query parameters from fields tagged `query:"name"`.
//
// A valid bearer token is honored without being required, so handlers can
// show drafts to the admin through reqctx.User.
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), e *env) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := e.addRequestMetadataToContext(r.Context(), r)
		if _, err := bearerToken(r); err == nil {
			if _, authCtx, err := e.authenticate(ctx, r); err == nil {
				ctx = authCtx
			}
		}
		if !checkRateLimit(ctx, w, e.tiers.Match(r.Method, r.URL.Path, false), reqctx.ClientIP(ctx)) {
			return
		}
		input, ok := parseRequest[In, PtrIn](ctx, w, r, e.maxBody)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps a handler that requires the admin token.
// The function must have signature: func(context.Context, *auth.User, *In) (*Out, error)
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, *auth.User, PtrIn) (*Out, error), e *env) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := e.addRequestMetadataToContext(r.Context(), r)
		user, ctx, err := e.authenticate(ctx, r)
		if err != nil {
			handleAuthError(ctx, w, err)
			return
		}
		if !checkRateLimit(ctx, w, e.tiers.Match(r.Method, r.URL.Path, true), reqctx.ClientIP(ctx)) {
			return
		}
		input, ok := parseRequest[In, PtrIn](ctx, w, r, e.maxBody)
		if !ok {
			return
		}
		output, err := fn(ctx, user, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuthFile wraps an admin download.
func WrapAuthFile[In any, PtrIn interface {
	*In
	dto.Validatable
}](fn func(context.Context, *auth.User, PtrIn) (*dto.File, error), e *env) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := e.addRequestMetadataToContext(r.Context(), r)
		user, ctx, err := e.authenticate(ctx, r)
		if err != nil {
			handleAuthError(ctx, w, err)
			return
		}
		input, ok := parseRequest[In, PtrIn](ctx, w, r, e.maxBody)
		if !ok {
			return
		}
		f, err := fn(ctx, user, input)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		h := w.Header()
		h.Set("Content-Type", f.ContentType)
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
		h.Set("Content-Length", strconv.Itoa(len(f.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(f.Data); err != nil {
			slog.ErrorContext(ctx, "Failed to write download", "err", err)
		}
	})
}

func handleAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	msg := "Invalid or expired token"
	switch {
	case errors.Is(err, errUnauthorized):
		msg = "Access token required"
	case errors.Is(err, errInvalidAuthHdr):
		msg = "Invalid authorization header"
	}
	writeError(ctx, w, dto.Unauthorized(msg).Wrap(err))
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		if field.Type.Kind() == reflect.String {
			elem.Field(i).SetString(paramValue)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`. Unparsable numbers are
// ignored.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int:
			if intVal, err := strconv.Atoi(paramValue); err == nil {
				fieldVal.SetInt(int64(intVal))
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(paramValue); err == nil {
				fieldVal.SetBool(b)
			}
		case reflect.Pointer:
			if field.Type.Elem().Kind() == reflect.Int {
				if intVal, err := strconv.Atoi(paramValue); err == nil {
					fieldVal.Set(reflect.ValueOf(&intVal))
				}
			}
		default:
			if fieldVal.CanAddr() {
				if unmarshaler, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
					_ = unmarshaler.UnmarshalText([]byte(paramValue))
				}
			}
		}
	}
}

// handleValidationError handles a validation error from a request's Validate
// method. Errors without a status are reported as 400.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var ewsErr dto.ErrorWithStatus
	if !errors.As(err, &ewsErr) {
		err = dto.NewAPIError(http.StatusBadRequest, dto.ErrorCodeValidationFailed, err.Error())
	}
	writeError(ctx, w, err)
}

// statuser is implemented by responses that are not sent with 200.
type statuser interface {
	HTTPStatus() int
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if s, ok := any(output).(statuser); ok {
		status = s.HTTPStatus()
	}
	writeJSON(ctx, w, status, output)
}

// writeError writes the failure envelope. Only the public message of an
// ErrorWithStatus is sent; anything else is reported as an internal error.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	resp := dto.ErrorResponse{Message: "Internal server error", Code: dto.ErrorCodeInternal}
	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		resp.Code = ewsErr.Code()
		resp.Message = ewsErr.Message()
		resp.Details = ewsErr.Details()
	}
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", resp.Code)
	} else {
		slog.InfoContext(ctx, "Request rejected", "err", err, "statusCode", statusCode, "code", resp.Code)
	}
	writeJSON(ctx, w, statusCode, resp)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}
