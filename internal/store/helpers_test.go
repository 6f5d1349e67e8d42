// internal/store/helpers_test.go
package store

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(uuid.UUID, any) {}
func (nopBroadcaster) SendTo(uuid.UUID, []uuid.UUID, any) {}

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}
