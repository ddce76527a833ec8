package routes

import (
	"os"
	"strings"
	"time"

	"room-booking/controllers"
	"room-booking/middleware"
	"room-booking/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB             *gorm.DB
	Logger         *zerolog.Logger
	Users          *services.UserService
	Tokens         *services.TokenService
	Rooms          *services.RoomService
	Bookings       *services.BookingService
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	MetricsEnabled bool
}

func parseCorsOrigins(configured []string) []string {
	parts := configured
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		parts = strings.Split(raw, ",")
	}

	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func corsMiddleware(configured []string) gin.HandlerFunc {
	origins := parseCorsOrigins(configured)
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	})
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Metrics(),
		gin.Recovery(),
		corsMiddleware(d.CORSOrigins),
	)

	r.GET("/health", controllers.Health(d.DB))
	if d.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	ac := controllers.NewAuthController(d.Users, d.Tokens)
	rc := controllers.NewRoomController(d.Rooms)
	bc := controllers.NewBookingController(d.Bookings)

	requireAuth := middleware.JWTAuth(d.Tokens)
	limiter := middleware.NewIPRateLimiter(d.RateLimitRPS, d.RateLimitBurst)

	api := r.Group("/api")
	{
		auth := api.Group("/auth", limiter.Middleware())
		{
			auth.POST("/register", ac.Register)
			auth.POST("/login", ac.Login)
			auth.POST("/refresh", ac.Refresh)
			auth.POST("/logout", middleware.OptionalAuth(d.Tokens), ac.Logout)
		}

		api.GET("/users/me", requireAuth, ac.Me)

		rooms := api.Group("/rooms")
		{
			rooms.GET("", rc.SearchRooms)
			rooms.GET("/:id", rc.GetRoom)
			rooms.GET("/:id/availability", bc.CheckAvailability)

			admin := rooms.Group("", requireAuth, middleware.RequireAdmin())
			admin.POST("", rc.CreateRoom)
			admin.PATCH("/:id", rc.UpdateRoom)
			admin.PUT("/:id", rc.UpdateRoom)
		}

		bookings := api.Group("/bookings", requireAuth)
		{
			bookings.GET("", bc.ListBookings)
			bookings.POST("", bc.CreateBooking)
			bookings.GET("/:id", bc.GetBooking)
			bookings.POST("/:id/cancel", bc.CancelBooking)
			bookings.DELETE("/:id", bc.CancelBooking)
		}
	}

	return r
}
