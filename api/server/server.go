package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/api/service"
)

// Server defines an instance of a server that handles the requests of
// the marketplace clients.
type Server struct {
	port   int
	engine *gin.Engine
}

// New returns a new instance of the server. The authn middleware is
// applied to every route except ping and metrics.
func New(
	port int,
	service *service.Service,
	authn gin.HandlerFunc,
) *Server {
	server := &Server{
		port:   port,
		engine: gin.Default(),
	}

	server.registerRouter(service, authn)
	return server
}

func (s *Server) registerRouter(
	service *service.Service,
	authn gin.HandlerFunc,
) {
	s.engine.Use(handleError())
	s.engine.GET("metrics", gin.WrapH(promhttp.Handler()))

	g := s.engine.Group("bounty/v1")
	g.GET("ping", s.handle(service.Ping))

	authed := g.Group("", authn)
	authed.GET("submissions", s.handle(service.Submissions))
	authed.GET("submission", s.handle(service.Submission))
	authed.POST("submission", s.handle(service.CreateSubmission))
	authed.POST("submission/update", s.handle(service.UpdateSubmission))
	authed.POST("submission/delete", s.handle(service.DeleteSubmission))
	authed.POST("submission/review", s.handle(service.ReviewSubmission))

	authed.GET("payments", s.handle(service.Payments))
	authed.GET("payment", s.handle(service.Payment))
	authed.POST("payment/confirm", s.handle(service.ConfirmSettlement))
	authed.POST("payment/verify", s.handle(service.VerifyPayment))

	authed.GET("notifications", s.handle(service.Notifications))
	authed.POST("notification/read", s.handle(service.ReadNotification))

	authed.GET("company/stats", s.handle(service.CompanyStats))
}

// Run the server
func (s *Server) Run() {
	if err := s.engine.Run(fmt.Sprintf(":%d", s.port)); err != nil {
		log.Error("run the server failed", "error", err)
		os.Exit(1)
	}
}
