package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type recordingLogger struct {
	Logger
	lines []string
}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.lines = append(l.lines, format)
}

type recordingFactory struct {
	logger *recordingLogger
}

func (f *recordingFactory) CreateLogger(ctx context.Context) Logger {
	return f.logger
}

type LoggerSuite struct {
	suite.Suite
	buf *bytes.Buffer
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	SetOutput(s.buf)
	SetFormat("json")
	s.Require().NoError(SetLevel("info"))
}

func (s *LoggerSuite) TearDownTest() {
	SetLoggerFactory(nil)
	SetOutput(os.Stderr)
	SetFormat("text")
	s.Require().NoError(SetLevel("info"))
}

func (s *LoggerSuite) decodeLine() map[string]any {
	var line map[string]any
	s.Require().NoError(json.Unmarshal(s.buf.Bytes(), &line))
	return line
}

func (s *LoggerSuite) TestContextFieldsAreLogged() {
	ctx := WithFields(context.Background(), Fields{"request_id": "01ABC"})
	ctx = WithFields(ctx, Fields{"format": "SOAP"})

	NewLogger(ctx).Infof("note_processed flagged=%d", 2)

	line := s.decodeLine()
	s.Equal("note_processed flagged=2", line["msg"])
	s.Equal("01ABC", line["request_id"])
	s.Equal("SOAP", line["format"])
}

func (s *LoggerSuite) TestWithFieldsDoesNotMutateParent() {
	parent := WithFields(context.Background(), Fields{"a": 1})
	_ = WithFields(parent, Fields{"b": 2})

	s.Equal(Fields{"a": 1}, FieldsFrom(parent))
	s.Nil(FieldsFrom(context.Background()))
}

func (s *LoggerSuite) TestSetLevelFiltersDebug() {
	NewLogger(context.Background()).Debugf("hidden")
	s.Zero(s.buf.Len())

	s.Require().NoError(SetLevel("debug"))
	NewLogger(context.Background()).Debugf("shown")
	s.Equal(logrus.DebugLevel.String(), s.decodeLine()["level"])
}

func (s *LoggerSuite) TestSetLevelRejectsUnknown() {
	s.Error(SetLevel("chatty"))
}

func (s *LoggerSuite) TestFactoryOverridesDefault() {
	recorder := &recordingLogger{}
	SetLoggerFactory(&recordingFactory{logger: recorder})

	NewLogger(context.Background()).Infof("routed")

	s.Equal([]string{"routed"}, recorder.lines)
	s.Zero(s.buf.Len())
}
