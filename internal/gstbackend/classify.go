package gstbackend

import "strings"

// ErrorCategory is a coarse classification of runtime bus errors, attached to
// pipeline.BusError.Category for logs and the history ledger.
type ErrorCategory int

const (
	ErrCategoryUnknown ErrorCategory = iota
	ErrCategoryPermission
	ErrCategoryResource
	ErrCategoryCodec
	ErrCategoryNetwork
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

var (
	permissionKeywords = []string{"permission denied", "not permitted", "read-only file system", "forbidden"}
	resourceKeywords   = []string{"no space left", "could not open", "could not write", "could not read", "resource", "no such file"}
	codecKeywords      = []string{"not-negotiated", "not negotiated", "caps", "codec", "format", "missing plugin", "no decoder", "stream type", "parse", "internal data stream error"}
	networkKeywords    = []string{"connection", "timeout", "unreachable", "network", "socket", "could not connect"}
)

// ClassifyError categorizes a bus error from its message and debug text.
// Checks run most specific first.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)
	switch {
	case containsAny(combined, permissionKeywords):
		return ErrCategoryPermission
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
