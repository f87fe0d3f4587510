package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/metrico/qryn-ai/writer/config"
	"github.com/sirupsen/logrus"
)

type LogInfo logrus.Fields

var RLogs *rotatelogs.RotateLogs
var Logger = logrus.New()

// InitLogger configures the global logger from config.Setting.Log.
func InitLogger() {
	settings := &config.Setting.Log
	if settings.Json {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}

	if settings.Stdout {
		setOutput(os.Stdout)
	}

	/* log level default */
	if settings.Level == "" {
		settings.Level = "error"
	}
	SetLoggerLevel(settings.Level)

	Logger.Info("init logging system")

	if !settings.Stdout {
		configureLocalFileSystemHook(settings)
	}
}

// SetLoggerLevel function
func SetLoggerLevel(loglevelString string) {
	if logLevel, err := logrus.ParseLevel(loglevelString); err == nil {
		Logger.SetLevel(logLevel)
	} else {
		Logger.Error("Couldn't parse loglevel ", loglevelString)
		Logger.SetLevel(logrus.ErrorLevel)
	}
}

func configureLocalFileSystemHook(settings *config.LogSettings) {
	logPath := settings.Path
	logName := settings.Name
	var err error

	if configPath := os.Getenv("WEBAPPLOGPATH"); configPath != "" {
		logPath = configPath
	}
	if configName := os.Getenv("WEBAPPLOGNAME"); configName != "" {
		logName = configName
	}

	fileLogExtension := filepath.Ext(logName)
	fileLogBase := strings.TrimSuffix(logName, fileLogExtension)

	pathAllLog := filepath.Join(logPath, fileLogBase+"_%Y%m%d%H%M"+fileLogExtension)
	pathLog := filepath.Join(logPath, logName)

	RLogs, err = rotatelogs.New(
		pathAllLog,
		rotatelogs.WithLinkName(pathLog),
		rotatelogs.WithMaxAge(time.Duration(settings.MaxAgeDays)*24*time.Hour),
		rotatelogs.WithRotationTime(time.Duration(settings.RotationHours)*time.Hour),
	)
	if err != nil {
		Logger.Println("Local file system hook initialize fail: ", err)
		return
	}
	setOutput(RLogs)
}

func setOutput(w io.Writer) {
	Logger.SetOutput(w)
	log.SetOutput(w)
}

func Info(args ...interface{}) {
	Logger.Info(args...)
}

func Error(args ...interface{}) {
	Logger.Error(args...)
}

func Debug(args ...interface{}) {
	Logger.Debug(args...)
}

func Warn(args ...interface{}) {
	Logger.Warn(args...)
}

// WithFields returns an entry carrying info, for structured lines.
func WithFields(info LogInfo) *logrus.Entry {
	return Logger.WithFields(logrus.Fields(info))
}
