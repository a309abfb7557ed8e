package social

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindServer
	KindBadRequest
	KindNotFound
	KindDecode
	KindAlreadyFollowing
	KindSelfFollow
	KindNotFollowing
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	case KindAlreadyFollowing:
		return "already_following"
	case KindSelfFollow:
		return "self_follow"
	case KindNotFollowing:
		return "not_following"
	default:
		return "unknown"
	}
}

// Conflict reports whether k is a follow-graph domain conflict.
func (k Kind) Conflict() bool {
	switch k {
	case KindAlreadyFollowing, KindSelfFollow, KindNotFollowing:
		return true
	}
	return false
}

// Error is returned by every Client method that fails.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status > 0 {
		fmt.Fprintf(&b, ": api returned status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsConflict reports whether err is a follow-graph domain conflict.
func IsConflict(err error) bool {
	return KindOf(err).Conflict()
}

// Machine-readable codes a backend may send in the "code" field.
const (
	CodeAlreadyFollowing = "ALREADY_FOLLOWING"
	CodeSelfFollow       = "SELF_FOLLOW"
	CodeNotFollowing     = "NOT_FOLLOWING"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION"
)

type errorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify turns a non-2xx response into an *Error. The explicit code wins,
// then the status, then the message texts of the existing backend.
func classify(op string, status int, body []byte) *Error {
	var payload errorBody
	_ = json.Unmarshal(body, &payload)

	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(payload.Message)
	}

	kind := kindForCode(payload.Code)
	if kind == KindUnknown {
		kind = kindForStatus(op, status)
	}
	if kind == KindBadRequest {
		if legacy := kindForMessage(msg); legacy != KindUnknown {
			kind = legacy
		}
	}
	return &Error{
		Op:      op,
		Kind:    kind,
		Status:  status,
		Code:    payload.Code,
		Message: msg,
	}
}

func kindForCode(code string) Kind {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeAlreadyFollowing:
		return KindAlreadyFollowing
	case CodeSelfFollow:
		return KindSelfFollow
	case CodeNotFollowing:
		return KindNotFollowing
	case CodeNotFound:
		return KindNotFound
	case CodeValidation:
		return KindBadRequest
	}
	return KindUnknown
}

func kindForStatus(op string, status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict && op == opFollow:
		return KindAlreadyFollowing
	case status == http.StatusConflict && op == opUnfollow:
		return KindNotFollowing
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}

func kindForMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already following"):
		return KindAlreadyFollowing
	case strings.Contains(lower, "cannot follow themselves"), strings.Contains(lower, "cannot follow yourself"):
		return KindSelfFollow
	case strings.Contains(lower, "not following"):
		return KindNotFollowing
	}
	return KindUnknown
}
