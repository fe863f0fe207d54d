// Package web serves the live pipeline results to visualization clients.
package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sleepywoodpecker/emg-goes-live/internal/processing"
)

// Server is a read-only HTTP view over a running pipeline.
type Server struct {
	app      *fiber.App
	addr     string
	pipeline *processing.Pipeline
	logger   *zap.Logger
}

type seriesResponse struct {
	Name   string    `json:"name"`
	From   int       `json:"from"`
	Total  int       `json:"total"`
	Values []float64 `json:"values"`
}

func NewServer(addr string, pipeline *processing.Pipeline, logger *zap.Logger) *Server {
	s := &Server{
		addr:     addr,
		pipeline: pipeline,
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "EMG live",
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/snapshot", s.handleSnapshot)
	api.Get("/series/:name", s.handleSeries)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("[web] listening", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Stats())
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Snapshot())
}

func (s *Server) handleSeries(c *fiber.Ctx) error {
	from := 0
	if q := c.Query("from"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "from must be a non-negative integer")
		}
		from = n
	}

	name := c.Params("name")
	var values []float64
	switch name {
	case "samples":
		values = s.pipeline.Samples()
	case "envelope":
		values = s.pipeline.Envelope()
	case "rms":
		values = s.pipeline.RMS()
	case "iemg":
		values = s.pipeline.IEMG()
	case "mnf":
		values = s.pipeline.MNF()
	case "mpf":
		values = s.pipeline.MPF()
	case "fatigue_a":
		values = s.pipeline.FatigueA()
	case "fatigue_b":
		values = s.pipeline.FatigueB()
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown series "+name)
	}

	total := len(values)
	if from > total {
		from = total
	}
	return c.JSON(seriesResponse{
		Name:   name,
		From:   from,
		Total:  total,
		Values: values[from:],
	})
}
