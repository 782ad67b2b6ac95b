package tracing

import (
	"context"
	"errors"

	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"person_name":   {},
	"reason":        {},
	"authorization": {},
	"http.url":      {},
	"http.query":    {},
}

// ExtractContext reads upstream trace and baggage headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that may carry member data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, forbidden := forbiddenAttributeKeys[attr.Key]; forbidden {
			continue
		}
		if !attr.Valid() {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its stable code so spans never record hints or
// request payload fragments.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(ierr.Code(err))
}
