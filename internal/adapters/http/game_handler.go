package httpadapter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/twogether/internal/app/icebreaker"
	"github.com/PabloGalante/twogether/internal/domain"
)

type submitAnswerRequest struct {
	QuestionID     domain.QuestionID `json:"question_id"`
	SelectedOption string            `json:"selected_option"`
	Party          domain.Party      `json:"party"`
}

// requireGameToken accepts a token of either partner of the session the game
// belongs to.
func (s *Server) requireGameToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		claims, ok := s.auth.authenticate(c)
		if !ok {
			return
		}
		game, err := s.games.GetGame(c.Request.Context(), domain.GameID(c.Param("id")))
		if err != nil {
			writeError(c, err)
			return
		}
		if game.SessionID != claims.SessionID {
			abortAuth(c, http.StatusForbidden, errors.New("token belongs to another session"))
			return
		}
		c.Next()
	}
}

func (s *Server) handleGetGame(c *gin.Context) {
	view, err := s.games.GetGame(c.Request.Context(), domain.GameID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGetGameBySession(c *gin.Context) {
	view, err := s.games.GetGameBySession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleStartGame(c *gin.Context) {
	view, err := s.games.StartGame(c.Request.Context(), domain.GameID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if claims := claimsFrom(c); claims != nil && claims.Role != req.Party {
		abortAuth(c, http.StatusForbidden, errors.New("token role does not match the answering party"))
		return
	}

	res, err := s.games.SubmitAnswer(c.Request.Context(), icebreaker.SubmitAnswerInput{
		GameID:         domain.GameID(c.Param("id")),
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		Party:          req.Party,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCompleteGame(c *gin.Context) {
	snap, err := s.games.CompleteGame(c.Request.Context(), domain.GameID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleCancelGame(c *gin.Context) {
	view, err := s.games.CancelGame(c.Request.Context(), domain.GameID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
