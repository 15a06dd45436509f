package casport

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Log subsystems used by the pipeline. The provider registers them on the request context.
const (
	SubsystemResolver  = "casport"
	SubsystemCache     = "cache"
	SubsystemDirectory = "directory"
	SubsystemKerberos  = "kerberos"
)

// LogOperation is a helper function to log an operation with timing.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		fields["error_category"] = string(GetErrorCategory(err))
		tflog.SubsystemDebug(ctx, subsystem, "Operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", fields)
	}

	return err
}

// LogPerformance logs timing for an operation, escalating the level for slow calls.
func LogPerformance(ctx context.Context, subsystem, operation string, duration time.Duration, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	if duration > 5*time.Second {
		tflog.SubsystemWarn(ctx, subsystem, "Slow operation detected", fields)
	} else {
		tflog.SubsystemTrace(ctx, subsystem, "Operation performance", fields)
	}
}

// LogCacheEvent logs identity cache state changes.
func LogCacheEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "cache_connected", "cache_recovered":
		tflog.SubsystemInfo(ctx, SubsystemCache, "Cache event", fields)
	case "cache_degraded", "cache_entry_corrupt":
		tflog.SubsystemWarn(ctx, SubsystemCache, "Cache event", fields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemCache, "Cache event", fields)
	}
}

// LogKerberosEvent logs Kerberos-specific events.
func LogKerberosEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "ticket_acquired", "keytab_loaded":
		tflog.SubsystemInfo(ctx, SubsystemKerberos, "Kerberos event", fields)
	case "ticket_acquisition_failed", "keytab_load_failed", "spnego_header_failed":
		tflog.SubsystemError(ctx, SubsystemKerberos, "Kerberos event", fields)
	default:
		tflog.SubsystemDebug(ctx, SubsystemKerberos, "Kerberos event", fields)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":   true,
		"passphrase": true,
		"secret":     true,
		"token":      true,
		"key":        true,
		"ca_cert":    true,
	}

	for k, v := range fields {
		if sensitiveKeys[k] || strings.HasSuffix(k, "_password") || strings.HasSuffix(k, "_passphrase") {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"password=", "passphrase=", "secret=", "token=", "private key"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
