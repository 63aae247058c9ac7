package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

/* TracingMiddleware starts a server span per request, continuing any incoming trace context */
func TracingMiddleware() func(http.Handler) http.Handler {
	tracer := otel.Tracer("missioncontrol/http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			route := routeTemplate(r)
			ctx, span := tracer.Start(ctx, r.Method+" "+route,
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
					attribute.String("http.target", r.URL.Path),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("http.request_id", GetRequestID(r.Context())),
				),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", recorder.statusCode))
			if recorder.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(recorder.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
