package httpadapter

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/twogether/internal/adapters/notify"
	"github.com/PabloGalante/twogether/internal/app/icebreaker"
	"github.com/PabloGalante/twogether/internal/app/negotiation"
	"github.com/PabloGalante/twogether/internal/domain"
)

type Server struct {
	sessions *negotiation.Service
	games    *icebreaker.Service
	hub      *notify.Hub
	auth     *Auth
}

// Deps wires the transport to the application services. Hub may be nil, in
// which case the websocket route answers 404. An empty JWTSecret disables
// partner tokens.
type Deps struct {
	Sessions  *negotiation.Service
	Games     *icebreaker.Service
	Hub       *notify.Hub
	JWTSecret string
}

func NewServer(d Deps) http.Handler {
	s := &Server{
		sessions: d.Sessions,
		games:    d.Games,
		hub:      d.Hub,
		auth:     NewAuth(d.JWTSecret),
	}

	r := gin.New()
	r.Use(gin.Recovery(), withRequestLogging(), withCORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSummary)
		sessions.GET("/:id/results", s.handleGetResults)
		sessions.GET("/:id/shortlist", s.handleGetShortlist)
		sessions.GET("/:id/game", s.handleGetGameBySession)

		sessions.POST("/:id/response", s.auth.requireSessionRole(domain.PartyB), s.handleSubmitResponse)
		sessions.POST("/:id/shortlist", s.auth.requireSessionRole(domain.PartyA), s.handleSelectShortlist)
		sessions.POST("/:id/finalize", s.auth.requireSessionRole(domain.PartyB), s.handleFinalize)
	}

	games := r.Group("/games/:id")
	{
		games.GET("", s.handleGetGame)
		games.POST("/start", s.requireGameToken(), s.handleStartGame)
		games.POST("/answers", s.requireGameToken(), s.handleSubmitAnswer)
		games.POST("/complete", s.requireGameToken(), s.handleCompleteGame)
		games.POST("/cancel", s.requireGameToken(), s.handleCancelGame)
	}

	r.GET("/ws/sessions/:id", s.handleWebSocket)

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	Preferences       domain.Preferences `json:"preferences"`
	OriginatorContact string             `json:"originator_contact"`
}

type tokensResponse struct {
	PartnerA string `json:"partner_a"`
	PartnerB string `json:"partner_b"`
}

type sessionResponse struct {
	ID          domain.SessionID     `json:"id"`
	State       domain.SessionState  `json:"state"`
	Shortlist   []domain.CandidateID `json:"shortlist,omitempty"`
	FinalChoice domain.CandidateID   `json:"final_choice,omitempty"`
	Version     int64                `json:"version"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type createSessionResponse struct {
	Session sessionResponse `json:"session"`
	Tokens  *tokensResponse `json:"tokens,omitempty"`
}

type submitResponseRequest struct {
	Preferences domain.Preferences `json:"preferences"`
}

type submitResponseResponse struct {
	Session      sessionResponse    `json:"session"`
	Candidates   []domain.Candidate `json:"candidates"`
	UsedFallback bool               `json:"used_fallback"`
}

type selectShortlistRequest struct {
	CandidateIDs []domain.CandidateID `json:"candidate_ids"`
}

type finalizeRequest struct {
	CandidateID domain.CandidateID `json:"candidate_id"`
}

type finalizeResponse struct {
	Session        sessionResponse  `json:"session"`
	FinalCandidate domain.Candidate `json:"final_candidate"`
}

func toSessionResponse(s *domain.DateSession) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		State:       s.State,
		Shortlist:   s.Shortlist,
		FinalChoice: s.FinalChoice,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// ─────────────────────────────────────────────
// Session handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	session, err := s.sessions.CreateSession(c.Request.Context(), negotiation.CreateSessionInput{
		PreferencesA:      req.Preferences,
		OriginatorContact: req.OriginatorContact,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := createSessionResponse{Session: toSessionResponse(session)}
	if s.auth != nil {
		tokens, err := s.issueTokens(session.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Tokens = tokens
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) issueTokens(id domain.SessionID) (*tokensResponse, error) {
	a, err := s.auth.Issue(id, domain.PartyA)
	if err != nil {
		return nil, err
	}
	b, err := s.auth.Issue(id, domain.PartyB)
	if err != nil {
		return nil, err
	}
	return &tokensResponse{PartnerA: a, PartnerB: b}, nil
}

func (s *Server) handleGetSummary(c *gin.Context) {
	summary, err := s.sessions.GetSessionSummary(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleSubmitResponse(c *gin.Context) {
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	out, err := s.sessions.SubmitPartnerBResponse(c.Request.Context(), domain.SessionID(c.Param("id")), req.Preferences)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponseResponse{
		Session:      toSessionResponse(out.Session),
		Candidates:   out.Candidates,
		UsedFallback: out.UsedFallback,
	})
}

func (s *Server) handleGetResults(c *gin.Context) {
	results, err := s.sessions.GetResults(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleGetShortlist(c *gin.Context) {
	view, err := s.sessions.GetShortlist(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSelectShortlist(c *gin.Context) {
	var req selectShortlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	session, err := s.sessions.SelectShortlist(c.Request.Context(), domain.SessionID(c.Param("id")), req.CandidateIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleFinalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	out, err := s.sessions.Finalize(c.Request.Context(), domain.SessionID(c.Param("id")), req.CandidateID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, finalizeResponse{
		Session:        toSessionResponse(out.Session),
		FinalCandidate: out.FinalCandidate,
	})
}
