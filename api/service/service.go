package service

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/advisory"
	"github.com/photon-storage/bounty-hub/chain"
	"github.com/photon-storage/bounty-hub/escrow"
	"github.com/photon-storage/bounty-hub/review"
)

// Service defines an instance of service that handles marketplace
// requests.
type Service struct {
	db          *gorm.DB
	machine     *review.Machine
	coordinator *escrow.Coordinator
	node        *chain.Client
	advisor     *advisory.Client
}

// New creates a new service instance.
func New(
	db *gorm.DB,
	machine *review.Machine,
	coordinator *escrow.Coordinator,
	node *chain.Client,
	advisor *advisory.Client,
) *Service {
	return &Service{
		db:          db,
		machine:     machine,
		coordinator: coordinator,
		node:        node,
		advisor:     advisor,
	}
}

type pingResp struct {
	Pong string `json:"pong"`
}

func (s *Service) Ping(_ *gin.Context) (*pingResp, error) {
	return &pingResp{Pong: "pong"}, nil
}
