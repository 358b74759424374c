package shared

import (
	"errors"

	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog logger scoped to the request id
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get(ContextKeyRequestID); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError writes the error envelope and logs err when present
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// MappedError maps a service sentinel to a response. Verbatim rules answer with
// err.Error() so gateway messages reach the caller unchanged.
type MappedError struct {
	Target   error
	Code     int
	Message  string
	Verbatim bool
}

// MatchMappedError returns the first rule err matches
func MatchMappedError(err error, rules []MappedError) (MappedError, bool) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			return rule, true
		}
	}
	return MappedError{}, false
}

// MessageFor the message a rule produces for err
func (m MappedError) MessageFor(err error) string {
	if m.Verbatim && err != nil {
		return err.Error()
	}
	return m.Message
}

// RespondMappedError answers with the matching rule, or the fallback logged as an internal error
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	if rule, ok := MatchMappedError(err, rules); ok {
		RespondError(c, rule.Code, rule.MessageFor(err), nil)
		return
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}

// ConcatMappedErrors joins rule groups
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
