// Package logging provides structured logging for the adapter, wrapping
// logrus the way the rest of the stack's ambient concerns wrap a real
// third-party library instead of hand-rolling one.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel mirrors logrus.Level with the adapter's own naming so callers
// outside this package never import logrus directly.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LogLevelSilent:
		return logrus.PanicLevel
	case LogLevelError:
		return logrus.ErrorLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelVerbose:
		return logrus.WarnLevel
	case LogLevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is a thin façade over a *logrus.Logger, adding the adapter's
// domain-specific log helpers (connection events, wire traces) on top of
// logrus's structured Fields.
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

// NewLogger creates a Logger at level, optionally teeing output to logFile
// in addition to stderr.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(level.logrusLevel())
	base.SetOutput(os.Stderr)

	l := &Logger{entry: base}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		l.file = file
		base.SetOutput(io.MultiWriter(os.Stderr, file))
	}
	return l, nil
}

// Close flushes and closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetLevel changes the active logging level.
func (l *Logger) SetLevel(level LogLevel) {
	l.entry.SetLevel(level.logrusLevel())
}

// GetLevel returns the active logging level.
func (l *Logger) GetLevel() LogLevel {
	switch l.entry.GetLevel() {
	case logrus.PanicLevel, logrus.FatalLevel:
		return LogLevelSilent
	case logrus.ErrorLevel:
		return LogLevelError
	case logrus.InfoLevel:
		return LogLevelInfo
	case logrus.WarnLevel:
		return LogLevelVerbose
	default:
		return LogLevelDebug
	}
}

func (l *Logger) Error(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *Logger) Verbose(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *Logger) Debug(format string, v ...interface{}) { l.entry.Debugf(format, v...) }

// LogConnectionEvent logs a Forward-Open/Forward-Close/timeout transition
// for one connection, with the connection triad as structured fields.
func (l *Logger) LogConnectionEvent(event, connPoint string, serial uint16, vendorID uint16, originatorSerial uint32, err error) {
	fields := logrus.Fields{
		"connection_serial": serial,
		"vendor_id":         vendorID,
		"originator_serial": originatorSerial,
		"conn_point":        connPoint,
	}
	if err != nil {
		l.entry.WithFields(fields).WithError(err).Error(event)
		return
	}
	l.entry.WithFields(fields).Info(event)
}

// LogStartup logs the adapter's identity and listen configuration at boot.
func (l *Logger) LogStartup(name, listenIP string, tcpPort, udpPort int, configPath string) {
	l.entry.WithFields(logrus.Fields{
		"name":      name,
		"listen_ip": listenIP,
		"tcp_port":  tcpPort,
		"udp_port":  udpPort,
		"config":    configPath,
	}).Info("starting cipadapter")
}

// LogHex logs data as a space-separated hex dump at debug level, for wire
// traces (Forward-Open bodies, produced/consumed frames).
func (l *Logger) LogHex(label string, data []byte) {
	if !l.entry.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	l.entry.WithField("bytes", len(data)).Debugf("%s: % x", label, data)
}
