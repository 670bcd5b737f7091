package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jilsnshah/alignflow/internal/media"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
)

// handleTimeout bounds the processing of one webhook, classifier call
// included.
const handleTimeout = 60 * time.Second

// emptyTwiML tells Twilio the webhook was received and no synchronous reply
// follows; replies go out through the REST API instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// ServerOpts holds configuration for the webhook server.
type ServerOpts struct {
	Router   *Router
	Cases    store.CaseStore
	Sessions store.SessionStore
	Local    *media.Local
	Port     int
}

// StartServer runs the webhook and ops API server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, opts ServerOpts) error {
	if opts.Router == nil || opts.Cases == nil || opts.Sessions == nil {
		return fmt.Errorf("router: server requires Router, Cases, and Sessions")
	}
	if opts.Port <= 0 {
		opts.Port = 5000
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	registerRoutes(engine, opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Printf("router: webhook server listening on :%d", opts.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("router: serve: %w", err)
	}
	return nil
}

func registerRoutes(engine *gin.Engine, opts ServerOpts) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.POST("/webhook", func(c *gin.Context) {
		from := c.PostForm("From")
		body := c.PostForm("Body")
		numMedia, _ := strconv.Atoi(c.PostForm("NumMedia"))

		var mediaURLs []string
		for i := 0; i < numMedia; i++ {
			if url := c.PostForm(fmt.Sprintf("MediaUrl%d", i)); url != "" {
				mediaURLs = append(mediaURLs, url)
			}
		}

		// Ack immediately; Twilio retries on slow responses and the
		// classifier can take several seconds.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
			defer cancel()
			if err := opts.Router.HandleMessage(ctx, from, body, mediaURLs); err != nil {
				log.Printf("router: handle message from %s: %v", from, err)
			}
		}()

		c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
	})

	if opts.Local != nil {
		engine.GET("/media/:name", func(c *gin.Context) {
			c.File(opts.Local.Path(c.Param("name")))
		})
	}

	api := engine.Group("/api")
	{
		api.GET("/cases", func(c *gin.Context) {
			cases, err := opts.Cases.ListCases(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, cases)
		})

		api.GET("/cases/:id", func(c *gin.Context) {
			rec, err := opts.Cases.GetCase(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rec)
		})

		api.GET("/sessions/:user", func(c *gin.Context) {
			sess, err := opts.Sessions.GetSession(c.Request.Context(), c.Param("user"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, sess)
		})

		// Ops endpoints: set a status or courier update, then run the
		// production step. Mutations go through the Router so they are
		// serialized with in-flight message handling for the same owner.
		api.POST("/cases/:id/status", func(c *gin.Context) {
			var req struct {
				Status string `json:"status" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !workflow.ValidStatus(workflow.CaseStatus(req.Status)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", req.Status)})
				return
			}
			rec, err := opts.Router.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rec)
		})

		api.POST("/cases/:id/delivery", func(c *gin.Context) {
			var req struct {
				DeliveryStatus string `json:"delivery_status" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			rec, err := opts.Router.SetDelivery(c.Request.Context(), c.Param("id"), req.DeliveryStatus)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rec)
		})

		api.POST("/cases/:id/advance", func(c *gin.Context) {
			if err := opts.Router.AdvanceCase(c.Request.Context(), c.Param("id")); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			rec, err := opts.Cases.GetCase(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rec)
		})
	}
}
