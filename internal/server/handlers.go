package server

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) uploadText(c *fiber.Ctx) error {
	var req models.UploadRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}
	return s.index(c, *req.Text)
}

func (s *Server) uploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	text, err := parser.ExtractText(fh.Filename, data)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("could not read %s: %v", fh.Filename, err))
	}
	if strings.TrimSpace(text) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("no text found in %s", fh.Filename))
	}
	return s.index(c, text)
}

func (s *Server) index(c *fiber.Ctx, text string) error {
	sess := s.session(c)
	if _, err := s.rag.Upload(c.Context(), sess, text); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("Error in upload")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(models.UploadResponse{Message: models.UploadedMessage})
}

func (s *Server) ask(c *fiber.Ctx) error {
	var req models.AskRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}

	sess := s.session(c)
	answer, err := s.rag.Ask(c.Context(), sess, *req.Question)
	if err != nil {
		if errors.Is(err, rag.ErrNoIndex) {
			return fiber.NewError(fiber.StatusBadRequest, models.NoIndexDetail)
		}
		log.Error().Err(err).Str("session", sess.ID).Msg("Error in ask")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(models.AskResponse{Answer: answer})
}

// clear never fails at the HTTP level; errors are reported in the body
func (s *Server) clear(c *fiber.Ctx) error {
	if err := s.rag.Clear(c.Context(), s.session(c)); err != nil {
		return c.JSON(models.ClearResponse{Status: models.StatusError, Message: err.Error()})
	}
	return c.JSON(models.ClearResponse{Status: models.StatusSuccess, Message: models.ClearedMessage})
}

func (s *Server) session(c *fiber.Ctx) *rag.Session {
	// header values alias the request buffer, which fasthttp reuses
	id := utils.CopyString(strings.TrimSpace(c.Get(models.SessionHeader)))
	if id == "" {
		id = models.DefaultSessionID
	}
	return s.sessions.Get(id)
}

func (s *Server) parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
	}
	if err := s.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag())
			}
			return fiber.NewError(fiber.StatusUnprocessableEntity, strings.Join(msgs, "; "))
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
