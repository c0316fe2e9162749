package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter owns the optional log file output created by InitLogger.
type LogWriter struct {
	file *lumberjack.Logger
}

// Dispose flushes and closes the log file, if any.
func (lw *LogWriter) Dispose() {
	if lw == nil || lw.file == nil {
		return
	}
	lw.file.Close()
}

// InitLogger configures the standard logrus logger from the global config.
// Console output and the rotating log file have independent levels.
func InitLogger() (*LogWriter, *logger.Logger) {
	log := logger.StandardLogger()
	writer := &LogWriter{}

	consoleLevel := parseLogLevel(Config.Logging.OutputLevel, logger.InfoLevel)
	log.SetLevel(consoleLevel)
	if Config.Logging.OutputStderr {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.Stdout)
	}

	if Config.Logging.FilePath != "" {
		fileLevel := parseLogLevel(Config.Logging.FileLevel, consoleLevel)
		maxSize := Config.Logging.FileMaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}

		writer.file = &lumberjack.Logger{
			Filename:   Config.Logging.FilePath,
			MaxSize:    maxSize,
			MaxBackups: Config.Logging.FileMaxBackups,
			Compress:   true,
		}

		if fileLevel > consoleLevel {
			// console output moves into a hook so it keeps its own level
			log.AddHook(&fileHook{
				writer:    log.Out,
				level:     consoleLevel,
				formatter: log.Formatter,
			})
			log.SetOutput(io.Discard)
			log.SetLevel(fileLevel)
		}
		log.AddHook(&fileHook{
			writer:    writer.file,
			level:     fileLevel,
			formatter: &logger.JSONFormatter{},
		})
	}

	return writer, log
}

func parseLogLevel(level string, fallback logger.Level) logger.Level {
	if level == "" {
		return fallback
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return fallback
	}
	return parsed
}

// fileHook mirrors entries up to its own level into the rotating log file.
type fileHook struct {
	writer    io.Writer
	level     logger.Level
	formatter logger.Formatter
}

func (hook *fileHook) Levels() []logger.Level {
	return logger.AllLevels[:hook.level+1]
}

func (hook *fileHook) Fire(entry *logger.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = hook.writer.Write(line)
	return err
}

// LogFatal logs a fatal error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogFatal is called.
func LogFatal(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Fatal(errorMsg)
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logger.Entry {
	logFields := logger.NewEntry(logger.New())

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logger.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	errColl := []string{}
	for {
		errColl = append(errColl, fmt.Sprint(err))
		nextErr := errors.Unwrap(err)
		if nextErr != nil {
			err = nextErr
		} else {
			break
		}
	}

	errMarkSign := "~"
	for idx := 0; idx < (len(errColl) - 1); idx++ {
		errInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx, errMarkSign)
		nextErrInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx+1, errMarkSign)
		if idx == (len(errColl) - 2) {
			nextErrInfoText = fmt.Sprintf("%serror%s", errMarkSign, errMarkSign)
		}

		// Replace the last occurrence of the next error in the current error
		lastIdx := strings.LastIndex(errColl[idx], errColl[idx+1])
		if lastIdx != -1 {
			errColl[idx] = errColl[idx][:lastIdx] + nextErrInfoText + errColl[idx][lastIdx+len(errColl[idx+1]):]
		}

		errInfoText = strings.ReplaceAll(errInfoText, errMarkSign, "")
		logFields = logFields.WithField(errInfoText, errColl[idx])
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
