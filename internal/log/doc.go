// Package log builds the pdfharvest slog logger.
//
// SecureHandler masks sensitive values (cookies, authorization headers,
// tokens, JWTs) so that per-site credentials from the configuration never
// reach the terminal or the log file. NewLogger combines it with the
// configured format and an optional lumberjack-rotated log file.
//
//	logger, closer, err := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
