package middleware

import (
	"errors"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/gin-gonic/gin"
)

// ActingAsHeader selects which actor the authenticated user speaks as
const ActingAsHeader = "X-Acting-As"

const actorKey = "actor"

// ActingAs resolves the acting actor: the user itself, or a vport the user owns.
// Must run after JWTAuth.
func ActingAs(actors repository.ActorRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			common.ErrorResponse(c, 401, "Login required", nil)
			c.Abort()
			return
		}

		actorID := c.GetHeader(ActingAsHeader)
		if actorID == "" {
			actorID = userID
		}

		actor, err := actors.FindOwned(c.Request.Context(), userID, actorID)
		if err != nil {
			err = common.StorageErr(err)
			if errors.Is(err, common.ErrNotFound) {
				common.ErrorResponse(c, 403, "Cannot act as this actor", nil)
				c.Abort()
				return
			}
			common.AbortWithError(c, "Actor lookup failed", err)
			return
		}

		c.Set(actorKey, domain.ActorRef{ID: actor.ID, Kind: actor.Kind, UserID: userID})
		c.Next()
	}
}

// CurrentActor returns the acting actor set by ActingAs
func CurrentActor(c *gin.Context) (domain.ActorRef, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return domain.ActorRef{}, false
	}
	ref, ok := v.(domain.ActorRef)
	return ref, ok
}

// GetActorID returns the acting actor id or ""
func GetActorID(c *gin.Context) string {
	ref, _ := CurrentActor(c)
	return ref.ID
}
