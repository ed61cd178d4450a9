package di

import (
	"context"
	"testing"

	"studypath/internal/config"
	"studypath/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *ServiceContainer {
	t.Helper()
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	sc := NewServiceContainer(cfg, logger)
	sc.initializeServices(context.Background())
	return sc
}

func TestServiceContainer_RegistersAllServices(t *testing.T) {
	sc := newTestContainer(t)

	for _, name := range []string{"user", "subject", "ai", "assessment", "progress", "quiz", "lesson"} {
		t.Run(name, func(t *testing.T) {
			service, err := sc.GetService(name)
			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestServiceContainer_TypedGetters(t *testing.T) {
	sc := newTestContainer(t)

	users, err := sc.GetUserService()
	require.NoError(t, err)
	assert.NotNil(t, users)

	ai, err := sc.GetAIService()
	require.NoError(t, err)
	assert.NotNil(t, ai)

	quizzes, err := sc.GetQuizService()
	require.NoError(t, err)
	assert.NotNil(t, quizzes)
}

func TestServiceContainer_UnknownService(t *testing.T) {
	sc := newTestContainer(t)

	_, err := sc.GetService("mailer")
	assert.Error(t, err)
}

func TestGetServiceAs_WrongType(t *testing.T) {
	sc := newTestContainer(t)

	_, err := GetServiceAs[int](sc, "user")
	assert.Error(t, err)
}
