/*
Package log provides structured logging for lockc using zerolog.

The global Logger is a zerolog.Logger initialized via Init. Call sites that
want request-scoped context (which component, which container, which pid,
which LSM hook fired) derive a child logger with WithComponent,
WithContainer, WithPID, or WithHook rather than threading fields through
every call.

# Usage

	log.Init(log.ConfigFromEnv())
	log.Info("lockcd starting")

	hookLog := log.WithHook("sb_mount")
	hookLog.Debug().Str("container_id", id).Msg("mount denied")

LOCKC_LOG_LEVEL selects trace/debug/info/warn/error (default info).
LOCKC_LOG_FMT selects text/json (default text).
*/
package log
