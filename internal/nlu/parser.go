// Package nlu turns free-text messages into structured scheduling requests.
package nlu

import (
	"context"
	"errors"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

// ErrParseFailure means the parser produced nothing usable.
var ErrParseFailure = errors.New("could not parse scheduling request")

// Parser maps a message to a ParsedRequest. Partial results are not
// failures: a message with only a date yields a request with only Date set.
type Parser interface {
	Parse(ctx context.Context, message string) (model.ParsedRequest, error)
}

// Fallback tries Primary and uses Secondary when Primary fails.
type Fallback struct {
	Primary   Parser
	Secondary Parser
	Logger    *logger.Logger
}

// Parse implements Parser.
func (f *Fallback) Parse(ctx context.Context, message string) (model.ParsedRequest, error) {
	parsed, err := f.Primary.Parse(ctx, message)
	if err == nil {
		return parsed, nil
	}
	if f.Logger != nil {
		f.Logger.Sugar().Warnw("primary parser failed, using fallback", "error", err)
	}
	return f.Secondary.Parse(ctx, message)
}
