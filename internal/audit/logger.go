package audit

import (
	"context"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	reqctx "github.com/baechuer/community-service/internal/pkg/context"
)

var (
	// Business metrics
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_service",
			Name:      "registrations_total",
			Help:      "Total number of sign-up attempts that reached the store",
		},
		[]string{"status"}, // success, or the failing error code
	)

	SupersededAccountsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community_service",
			Name:      "superseded_accounts_total",
			Help:      "Accounts removed because another account claimed their unverified email",
		},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_service",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"status"}, // success, unknown_user, bad_password, inactive
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_service",
			Name:      "audit_events_total",
			Help:      "Audit events by action",
		},
		[]string{"action"},
	)
)

// Logger provides structured audit logging for identity business events.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record matches the identity service audit hook.
func (l *Logger) Record(ctx context.Context, action string, fields map[string]string) {
	l.count(action, fields)

	ev := l.log.Info()
	if isWarning(action) {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", action)
	if rid := reqctx.GetRequestID(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}

	// stable field order keeps console output diffable
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")
}

func (l *Logger) count(action string, fields map[string]string) {
	EventsTotal.WithLabelValues(action).Inc()

	switch action {
	case "user.created":
		RegistrationsTotal.WithLabelValues("success").Inc()
	case "user.create_failed":
		RegistrationsTotal.WithLabelValues(orDefault(fields["code"], "unknown")).Inc()
	case "accounts.superseded":
		if ids := fields["removed_ids"]; ids != "" {
			SupersededAccountsTotal.Add(float64(strings.Count(ids, ",") + 1))
		}
	case "login.succeeded":
		LoginAttemptsTotal.WithLabelValues("success").Inc()
	case "login.failed":
		LoginAttemptsTotal.WithLabelValues(orDefault(fields["reason"], "unknown")).Inc()
	}
}

func isWarning(action string) bool {
	return strings.HasSuffix(action, "_failed") ||
		strings.HasSuffix(action, ".failed") ||
		strings.HasSuffix(action, "_denied") ||
		action == "accounts.superseded" ||
		action == "user.removed"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
