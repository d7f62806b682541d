package server

import (
	"bufio"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"techfeed/artifact"
	"techfeed/models"
	"techfeed/viewer"
)

//go:embed dist/*
var dist embed.FS

// UserCookie holds the reader's id, which namespaces their stored state
const UserCookie = "techfeed_user"

type ServerConfig struct {
	// The artifact served to readers
	Cache *artifact.Cache

	// Persistent reader state
	Store viewer.Store

	// Broadcast channel to pass rebuild events to SSE clients
	Broadcaster *Broadcaster

	// Allowed CORS origin, e.g. a UI dev server. Empty disables CORS.
	CorsOrigin string
}

type errorResponse struct {
	Error string `json:"error"`
}

type itemsResponse struct {
	View   viewer.View  `json:"view"`
	Search string       `json:"search"`
	Total  int          `json:"total"`
	Items  []models.Row `json:"items"`
}

type stateResponse struct {
	Starred []string `json:"starred"`
	Read    []string `json:"read"`
}

type toggleRequest struct {
	Link string `json:"link"`
}

type toggleResponse struct {
	Link   string `json:"link"`
	Active bool   `json:"active"`
	stateResponse
}

func newStateResponse(state *viewer.State) stateResponse {
	return stateResponse{
		Starred: state.Starred.Sorted(),
		Read:    state.Read.Sorted(),
	}
}

// Make sure every reader carries an id cookie
func identify(c *fiber.Ctx) error {
	user := c.Cookies(UserCookie)
	if _, err := uuid.Parse(user); err != nil {
		user = uuid.New().String()
		c.Cookie(&fiber.Cookie{
			Name:     UserCookie,
			Value:    user,
			Path:     "/",
			Expires:  time.Now().AddDate(1, 0, 0),
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}
	c.Locals(UserCookie, user)
	return c.Next()
}

func userOf(c *fiber.Ctx) string {
	user, _ := c.Locals(UserCookie).(string)
	return user
}

// Returns a fiber.App instance to be used as an HTTP server for the tech feed
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster

	// Star and read toggles run one at a time
	var mutations sync.Mutex

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New(compress.Config{
		// Compressing the event stream would buffer it
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/events")
		},
	}))

	if config.CorsOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     config.CorsOrigin,
			AllowHeaders:     "Cache-Control, Content-Type",
			AllowCredentials: true,
		}))
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// The artifact as written by the aggregator
	app.Get("/feed.json", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(config.Cache.Path())
		if errors.Is(err, fs.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "Feed has not been built yet."})
		}
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error reading artifact")
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "Failed to read feed."})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		c.Set(fiber.HeaderCacheControl, "no-cache")
		return c.Send(data)
	})

	api := app.Group("/api", identify)

	api.Get("/items", func(c *fiber.Ctx) error {
		view, err := viewer.ParseView(c.Query("view", string(viewer.ViewNew)))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Invalid view."})
		}
		search := c.Query("q", "")

		items, err := config.Cache.Items()
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error loading artifact")
			return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "Failed to load feed."})
		}

		session := viewer.NewSession(c.UserContext(), items, config.Store, userOf(c))
		session.SetView(view)
		session.SetSearch(search)

		return c.JSON(itemsResponse{
			View:   view,
			Search: search,
			Total:  len(session.Filtered()),
			Items:  session.Rows(time.Now()),
		})
	})

	api.Get("/state", func(c *fiber.Ctx) error {
		session := viewer.NewSession(c.UserContext(), nil, config.Store, userOf(c))
		return c.JSON(newStateResponse(session.State()))
	})

	toggle := func(apply func(s *viewer.Session, c *fiber.Ctx, link string) (bool, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			var req toggleRequest
			if err := c.BodyParser(&req); err != nil || req.Link == "" {
				return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Missing link."})
			}

			mutations.Lock()
			defer mutations.Unlock()

			session := viewer.NewSession(c.UserContext(), nil, config.Store, userOf(c))
			active, err := apply(session, c, req.Link)
			if err != nil {
				log.WithFields(log.Fields{
					"link":  req.Link,
					"error": err,
				}).Error("Error saving user state")
				return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "Failed to save state."})
			}

			return c.JSON(toggleResponse{
				Link:          req.Link,
				Active:        active,
				stateResponse: newStateResponse(session.State()),
			})
		}
	}

	api.Post("/star", toggle(func(s *viewer.Session, c *fiber.Ctx, link string) (bool, error) {
		return s.ToggleStar(c.UserContext(), link)
	}))

	api.Post("/read", toggle(func(s *viewer.Session, c *fiber.Ctx, link string) (bool, error) {
		return s.ToggleRead(c.UserContext(), link)
	}))

	app.Get("/api/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		rebuiltChannel := make(chan models.RebuiltEvent, 10) // Buffered channel

		bc.AddClient(key, rebuiltChannel)

		// Use StreamWriter to manage SSE streaming
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			aliveChan := time.NewTicker(5 * time.Second)
			defer aliveChan.Stop()
			defer bc.RemoveClient(key)

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					// Send keep-alive pings
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-rebuiltChannel:
					if !ok {
						log.Infof("Rebuilt channel closed for client %s", key)
						return
					}
					data, err := json.Marshal(event)
					if err != nil {
						log.Errorf("Error marshalling rebuild event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: rebuilt\ndata: %s\n\n", data); err != nil {
						log.Warnf("Failed to send rebuilt event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush rebuilt event for client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	// Serve the reader UI
	app.Use("/", filesystem.New(filesystem.Config{
		Browse:     false,
		Index:      "index.html",
		Root:       http.FS(dist),
		PathPrefix: "/dist",
	}))

	return app
}
