package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/database/orm"
)

const principalKey = "auth.principal"

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware extracts the session principal from the bearer token and
// loads its active company memberships. Requests without a valid
// token are rejected before reaching any handler.
func Middleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c)
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.Errorf(
						"unexpected signing method %v", t.Header["alg"],
					)
				}

				return []byte(secret), nil
			},
		)
		if err != nil || !token.Valid || claims.Subject == "" {
			abortUnauthorized(c)
			return
		}

		p := &Principal{
			UserID: claims.Subject,
			Role:   orm.StrToRole(claims.Role),
		}

		members := make([]*orm.CompanyMember, 0)
		if err := db.Model(&orm.CompanyMember{}).
			Where("user_id = ? AND is_active = ?", p.UserID, true).
			Find(&members).
			Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code": http.StatusInternalServerError,
				"msg":  "load memberships failed",
			})
			return
		}

		for _, m := range members {
			p.Memberships = append(p.Memberships, Membership{
				CompanyID:         m.CompanyID,
				CanReviewBounty:   m.CanReviewBounty,
				CanApprovePayment: m.CanApprovePayment,
				CanManageMembers:  m.CanManageMembers,
			})
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// FromContext returns the request principal set by Middleware.
func FromContext(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}

	p, ok := v.(*Principal)
	return p, ok
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  "unauthorized",
	})
}
