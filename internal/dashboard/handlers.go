package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ibeckermayer/trendpersona/internal/agent"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

const (
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 90
	defaultBulkLimit     = 10
	maxBulkLimit         = 50
)

// Health reports liveness and database reachability
func (s *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"running": s.agent.Running(),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges operator credentials for a bearer token
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)

	if err := s.auth.Authenticate(req.Username, req.Password); err != nil {
		s.log.WithField("user", req.Username).WithField("ip", c.IP()).Warn("Failed login")
		return err
	}

	token, expires, err := s.auth.IssueToken(req.Username)
	if err != nil {
		return err
	}
	s.log.WithField("user", req.Username).Info("Operator logged in")
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expires,
	})
}

func (s *Server) GetStatus(c *fiber.Ctx) error {
	st, err := s.agent.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *Server) StartAgent(c *fiber.Ctx) error {
	s.agent.Start()
	return c.JSON(fiber.Map{"running": true})
}

func (s *Server) StopAgent(c *fiber.Ctx) error {
	s.agent.Stop()
	return c.JSON(fiber.Map{"running": false})
}

func (s *Server) EmergencyStop(c *fiber.Ctx) error {
	s.agent.EmergencyStop()
	return c.JSON(fiber.Map{"running": false, "cancelled": true})
}

func (s *Server) CheckServices(c *fiber.Ctx) error {
	checks, err := s.agent.CheckServices(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"services": checks})
}

// ListPosts returns one page of history, newest first
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	result, err := s.store.ListPosts(c.UserContext(), store.ParseFilter(c.Query("filter")), page)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type postRequest struct {
	Text    string `json:"text"`
	Persona string `json:"persona"`
}

// ManualPost sends operator text. A failed send still returns the record.
func (s *Server) ManualPost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	rec, err := s.agent.ManualPost(c.UserContext(), req.Text)
	if err != nil {
		if rec != nil {
			return upstreamFailure(c, err, "post", rec)
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// EnhancePost rewrites a draft without posting it
func (s *Server) EnhancePost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	var persona types.Category
	if req.Persona != "" {
		p, ok := types.ParseCategory(req.Persona)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown persona")
		}
		persona = p
	}

	result, err := s.agent.Enhance(c.UserContext(), req.Text, persona)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// ForcePost runs a full cycle now
func (s *Server) ForcePost(c *fiber.Ctx) error {
	timeout := time.Duration(s.agent.Config().Agent.CycleTimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	res, err := s.agent.ForcePost(ctx)
	if err != nil {
		if res != nil && res.RecordID != 0 {
			return upstreamFailure(c, err, "result", res)
		}
		return err
	}
	return c.JSON(res)
}

// RetryPost re-sends a failed record
func (s *Server) RetryPost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid post ID")
	}

	rec, err := s.agent.Retry(c.UserContext(), int64(id))
	if err != nil {
		if rec != nil && !errors.Is(err, agent.ErrAlreadySent) {
			return upstreamFailure(c, err, "post", rec)
		}
		return err
	}
	return c.JSON(rec)
}

type bulkRetryRequest struct {
	Limit int `json:"limit"`
}

// BulkRetry re-sends the oldest failed records with a gap between sends
func (s *Server) BulkRetry(c *fiber.Ctx) error {
	req := bulkRetryRequest{Limit: defaultBulkLimit}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if req.Limit <= 0 {
		req.Limit = defaultBulkLimit
	}
	req.Limit = min(req.Limit, maxBulkLimit)

	gap := time.Duration(s.cfg.BulkRetryGapSeconds) * time.Second
	result, err := s.agent.BulkRetry(c.UserContext(), req.Limit, gap)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid post ID")
	}
	if err := s.store.DeletePost(c.UserContext(), int64(id)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) ClearPosts(c *fiber.Ctx) error {
	n, err := s.store.ClearPosts(c.UserContext())
	if err != nil {
		return err
	}
	s.log.WithField("deleted", n).Warn("Post history cleared")
	return c.JSON(fiber.Map{"deleted": n})
}

func (s *Server) GetTrends(c *fiber.Ctx) error {
	list, err := s.agent.Trends(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{"trends": list})
}

func (s *Server) GetAnalytics(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultAnalyticsDays)
	if days < 1 || days > maxAnalyticsDays {
		return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 90")
	}
	result, err := s.agent.Analytics(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetConfig returns the editable settings with secrets masked
func (s *Server) GetConfig(c *fiber.Ctx) error {
	return c.JSON(s.agent.Config().Redacted())
}

// UpdateConfig applies a partial settings change
func (s *Server) UpdateConfig(c *fiber.Ctx) error {
	var settings config.Settings
	if err := c.BodyParser(&settings); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	cfg, err := s.agent.ApplySettings(c.UserContext(), settings)
	if err != nil {
		return err
	}
	if user, ok := c.Locals(localsUser).(string); ok {
		s.log.WithField("user", user).Info("Settings updated")
	}
	return c.JSON(cfg.Redacted())
}

func (s *Server) ListPrompts(c *fiber.Ctx) error {
	list, err := s.store.ListPrompts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"prompts": list})
}

type promptRequest struct {
	Template    string `json:"template"`
	Description string `json:"description"`
}

func (s *Server) UpsertPrompt(c *fiber.Ctx) error {
	var req promptRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Template) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "template is required")
	}

	p, err := s.store.UpsertPrompt(c.UserContext(), c.Params("persona"), req.Template, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) TogglePrompt(c *fiber.Ctx) error {
	p, err := s.store.TogglePrompt(c.UserContext(), c.Params("persona"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) DeletePrompt(c *fiber.Ctx) error {
	if err := s.store.DeletePrompt(c.UserContext(), c.Params("persona")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) ListPersonaSettings(c *fiber.Ctx) error {
	list, err := s.store.ListPersonaSettings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"settings": list})
}

type personaSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) UpdatePersonaSetting(c *fiber.Ctx) error {
	var req personaSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	ps, err := s.store.UpdatePersonaSetting(c.UserContext(), c.Params("key"), strings.TrimSpace(req.Value))
	if err != nil {
		return err
	}
	return c.JSON(ps)
}

// ExportDatabase returns a JSON backup as a file download
func (s *Server) ExportDatabase(c *fiber.Ctx) error {
	dump, err := s.store.Export(c.UserContext())
	if err != nil {
		return err
	}
	c.Attachment(fmt.Sprintf("trendpersona_backup_%s.json", dump.ExportedAt.Format("20060102_150405")))
	return c.JSON(dump)
}

// ImportDatabase restores a backup made by ExportDatabase
func (s *Server) ImportDatabase(c *fiber.Ctx) error {
	var dump store.Dump
	if err := c.BodyParser(&dump); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := s.store.Import(c.UserContext(), &dump)
	if err != nil {
		return err
	}
	entry := s.log.WithField("imported", result.Imported).WithField("skipped", result.Skipped)
	if user, ok := c.Locals(localsUser).(string); ok {
		entry = entry.WithField("user", user)
	}
	entry.Info("Database imported")
	return c.JSON(result)
}
