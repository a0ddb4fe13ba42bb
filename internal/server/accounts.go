package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
)

func (s *Server) GetAccount(c *gin.Context) {
	acct, err := s.accountSvc.Get(c.Request.Context(), creatorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": acct})
}

type linkAccountRequest struct {
	AccountID string `json:"accountId"`
}

func (s *Server) LinkAccount(c *gin.Context) {
	var req linkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	acct, err := s.accountSvc.Link(c.Request.Context(), creatorID(c), strings.TrimSpace(req.AccountID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": acct})
}

// RefreshAccount re-reads the connected account from the processor.
func (s *Server) RefreshAccount(c *gin.Context) {
	acct, err := s.accountSvc.Refresh(c.Request.Context(), creatorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": acct})
}

// StartOnboarding opens the processor's hosted onboarding, creating the
// connected account on first use.
func (s *Server) StartOnboarding(c *gin.Context) {
	var req accountdomain.OnboardingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	link, err := s.accountSvc.Onboard(c.Request.Context(), creatorID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": link})
}

func (s *Server) GetDashboardLink(c *gin.Context) {
	url, err := s.accountSvc.DashboardLink(c.Request.Context(), creatorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}
