package obs

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	l := logrus.New()
	SetLogLevel(l, "debug")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	SetLogLevel(l, "error")
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())

	SetLogLevel(l, "other")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestRecordDecision(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(authzDecisions.WithLabelValues("agenda", "view", "allow"))
	RecordDecision("agenda", "view", "allow")
	after := testutil.ToFloat64(authzDecisions.WithLabelValues("agenda", "view", "allow"))
	assert.Equal(t, before+1, after)
}

func TestMetricsEndpoint(t *testing.T) {
	Init()

	app := fiber.New()
	app.Use(Instrument())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
