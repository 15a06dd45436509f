package provider

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/stevenhaddox/terraform-provider-casport/internal/casport"
)

const subsystemProvider = "provider"

// initializeLogging creates the provider and pipeline subsystems.
// Call it at the start of Configure and of each data source Read.
// Levels come from TF_LOG_PROVIDER_CASPORT_<SUBSYSTEM>.
func initializeLogging(ctx context.Context) context.Context {
	for _, subsystem := range []string{
		subsystemProvider,
		casport.SubsystemResolver,
		casport.SubsystemCache,
		casport.SubsystemDirectory,
		casport.SubsystemKerberos,
	} {
		ctx = tflog.NewSubsystem(ctx, subsystem,
			tflog.WithLevelFromEnv("TF_LOG_PROVIDER_CASPORT_"+strings.ToUpper(subsystem)),
			tflog.WithRootFields())
	}
	return ctx
}

// logDataSourceOperation logs the start of a data source operation and returns a
// function that logs its completion.
func logDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}

	entryFields := make(map[string]any, len(fields)+2)
	maps.Copy(entryFields, fields)
	entryFields["data_source"] = dataSource
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystemProvider, "Starting data source operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any, len(fields)+5)
		maps.Copy(exitFields, fields)
		exitFields["data_source"] = dataSource
		exitFields["operation"] = operation
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			tflog.SubsystemError(ctx, subsystemProvider, "Data source operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, subsystemProvider, "Data source operation completed", exitFields)
		}
	}
}

// firstError returns the first error diagnostic as an error, for completion logging.
func firstError(diags diag.Diagnostics) error {
	for _, d := range diags.Errors() {
		return fmt.Errorf("%s: %s", d.Summary(), d.Detail())
	}
	return nil
}
