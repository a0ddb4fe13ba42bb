package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
)

func (s *Server) CreatePage(c *gin.Context) {
	var req pagedomain.CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, err := s.pageSvc.Create(c.Request.Context(), creatorID(c), pagedomain.CreatePageRequest{
		Brand:             strings.TrimSpace(req.Brand),
		Headline:          strings.TrimSpace(req.Headline),
		ChannelURL:        strings.TrimSpace(req.ChannelURL),
		CommissionPercent: req.CommissionPercent,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": page})
}

func (s *Server) ListPages(c *gin.Context) {
	pages, err := s.pageSvc.ListOwned(c.Request.Context(), creatorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if pages == nil {
		pages = []pagedomain.Page{}
	}

	c.JSON(http.StatusOK, gin.H{"data": pages})
}

func (s *Server) GetPage(c *gin.Context) {
	page, ok := s.ownedPage(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

func (s *Server) UpdatePage(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	var req pagedomain.UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, err := s.pageSvc.Update(c.Request.Context(), creatorID(c), pageID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

func (s *Server) DeletePage(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	if err := s.pageSvc.Delete(c.Request.Context(), creatorID(c), pageID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type pageStatusRequest struct {
	Status pagedomain.Status `json:"status"`
}

func (s *Server) SetPageStatus(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	var req pageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, err := s.pageSvc.SetStatus(c.Request.Context(), creatorID(c), pageID, pagedomain.Status(strings.TrimSpace(string(req.Status))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

func (s *Server) GetPageStats(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	stats, err := s.saleSvc.PageStats(c.Request.Context(), creatorID(c), pageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// TrackView and TrackClick back the public landing page beacons.
func (s *Server) TrackView(c *gin.Context) {
	s.track(c, pagedomain.CounterViews)
}

func (s *Server) TrackClick(c *gin.Context) {
	s.track(c, pagedomain.CounterClicks)
}

func (s *Server) track(c *gin.Context, counter pagedomain.Counter) {
	if err := s.pageSvc.Track(c.Request.Context(), strings.TrimSpace(c.Param("productId")), counter); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListPlans(c *gin.Context) {
	page, ok := s.ownedPage(c)
	if !ok {
		return
	}

	plans, err := s.planSvc.ListPlans(c.Request.Context(), page.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if plans == nil {
		plans = []plandomain.PricingPlan{}
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

type replacePlansRequest struct {
	Plans []plandomain.PlanInput `json:"plans"`
}

func (s *Server) ReplacePlans(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	var req replacePlansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plans, err := s.planSvc.ReplacePlans(c.Request.Context(), creatorID(c), pageID, req.Plans)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) AddPlan(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}

	var req plandomain.PlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.AddPlan(c.Request.Context(), creatorID(c), pageID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	planID, ok := parseSnowflakeID(c.Param("planId"))
	if !ok {
		AbortWithError(c, plandomain.ErrInvalidPlanID)
		return
	}

	var req plandomain.PlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.UpdatePlan(c.Request.Context(), creatorID(c), pageID, planID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) DeletePlan(c *gin.Context) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return
	}
	planID, ok := parseSnowflakeID(c.Param("planId"))
	if !ok {
		AbortWithError(c, plandomain.ErrInvalidPlanID)
		return
	}

	if err := s.planSvc.DeletePlan(c.Request.Context(), creatorID(c), pageID, planID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ownedPage loads the :pageId page and aborts unless the caller owns it.
func (s *Server) ownedPage(c *gin.Context) (*pagedomain.Page, bool) {
	pageID, ok := pageIDParam(c)
	if !ok {
		return nil, false
	}

	page, err := s.pageSvc.GetOwned(c.Request.Context(), creatorID(c), pageID)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return page, true
}

func pageIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, ok := parseSnowflakeID(c.Param("pageId"))
	if !ok {
		AbortWithError(c, plandomain.ErrInvalidPageID)
		return 0, false
	}
	return id, true
}
