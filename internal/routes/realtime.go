package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/middleware"
	"github.com/nagarika-mitra/nagarika_mitra/internal/notification"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
)

const feedScopeKey = "feed_scope"

// feedScope decides which change events a connection receives.
type feedScope struct {
	filter  notification.Filter
	mandal  string
	village string
}

// visible applies the area narrowing that Filter cannot express: a message
// addressed to a mandal or village reaches only residents of it.
func (s feedScope) visible(e notification.Event) bool {
	if e.Table != notification.TableMessages {
		return true
	}
	if e.Mandal != "" && e.Mandal != s.mandal {
		return false
	}
	return e.Village == "" || e.Village == s.village
}

// RegisterRealtimeRoutes serves GET /ws/feed?token=...&table=... . Citizens
// follow their own feedback or their area's messages; officials follow their
// district's feedback.
func RegisterRealtimeRoutes(app *fiber.App, hub *notification.Hub, sessionAuth fiber.Handler, logger *slog.Logger) {
	app.Get("/ws/feed",
		func(c *fiber.Ctx) error {
			if !websocket.IsWebSocketUpgrade(c) {
				return apierr.Write(c, http.StatusUpgradeRequired, apierr.KindBadRequest, errors.New("websocket upgrade required"))
			}
			return c.Next()
		},
		sessionAuth,
		middleware.RequireRole(identity.RoleCitizen, identity.RoleOfficial),
		func(c *fiber.Ctx) error {
			id, _ := session.FromCtx(c).Identity()
			scope, err := scopeFor(id, c.Query("table"))
			if err != nil {
				return apierr.Forbidden(c, err.Error())
			}
			c.Locals(feedScopeKey, scope)
			return c.Next()
		},
		websocket.New(func(conn *websocket.Conn) {
			scope, _ := conn.Locals(feedScopeKey).(feedScope)
			sub := hub.Subscribe(scope.filter)
			defer sub.Close()

			go func() {
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						sub.Close()
						return
					}
				}
			}()

			for e := range sub.C() {
				if !scope.visible(e) {
					continue
				}
				if err := conn.WriteJSON(e); err != nil {
					logger.Debug("feed connection closed", slog.Any("error", err))
					return
				}
			}
		}),
	)
}

var errFeedNotAllowed = errors.New("feed not available for this role")

func scopeFor(id identity.Identity, table string) (feedScope, error) {
	switch v := id.(type) {
	case *identity.Citizen:
		switch table {
		case "", notification.TableMessages:
			return feedScope{
				filter:  notification.Filter{Table: notification.TableMessages, District: v.District},
				mandal:  v.Mandal,
				village: v.Village,
			}, nil
		case notification.TableFeedback:
			return feedScope{filter: notification.Filter{Table: notification.TableFeedback, OwnerID: v.ID}}, nil
		}
	case *identity.Official:
		if (table == "" || table == notification.TableFeedback) && v.District != "" {
			return feedScope{filter: notification.Filter{Table: notification.TableFeedback, District: v.District}}, nil
		}
	}
	return feedScope{}, errFeedNotAllowed
}
