package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	logrus.FieldLogger
	SetLevel(level logrus.Level)
}

type logger struct {
	*logrus.Logger
}

func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &logger{l}
}

func (l *logger) SetLevel(level logrus.Level) {
	l.Logger.SetLevel(level)
}
