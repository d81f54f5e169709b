// Package logging builds log/slog loggers for the worker.
//
// Output goes to stdout as JSON (or text with LOG_FORMAT=text) and, when
// LOG_FILE is set, is duplicated into that file.
//
// Example usage:
//
//	logger, closer, err := logging.New(logging.OptionsFromEnv())
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	ctx = logging.WithLogger(ctx, logger)
package logging
