package observability

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/mesauthz/pkg/contextkeys"
)

// ParseLevel converts a level name to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a JSON logger writing to output
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetLevel(ParseLevel(level))
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return log
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, log *logrus.Logger) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, log)
}

// GetLogger retrieves the logger from context, or the standard logger
func GetLogger(ctx context.Context) *logrus.Logger {
	if log, ok := ctx.Value(contextkeys.LoggerKey).(*logrus.Logger); ok {
		return log
	}
	return logrus.StandardLogger()
}

// FromContext returns an entry carrying the request and user ids from ctx
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(GetLogger(ctx))

	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if userID := contextkeys.GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	return WithTraceContext(ctx, entry)
}
