package main

import (
	"fmt"
	"myblog-restful/auth"
	"myblog-restful/config"
	"myblog-restful/controllers"
	"myblog-restful/database"
	"myblog-restful/media"
	"myblog-restful/repositories"
	"myblog-restful/services"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// RequestLogger logs every request after it completes.
func RequestLogger(logger *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		startTime := time.Now()

		chain.ProcessFilter(req, resp)

		latency := time.Since(startTime)
		logger.Info("Request",
			zap.String("method", req.Request.Method),
			zap.String("path", req.Request.URL.Path),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", latency),
			zap.String("user_agent", req.Request.UserAgent()),
			zap.String("remote_addr", req.Request.RemoteAddr),
		)
	}
}

// @title MyBlog API
// @version 1.0
// @description JSON REST backend for the blog client.

// @host localhost:8080
// @BasePath /

func main() {
	// Initialize configs
	config.InitConfig()

	var logger *zap.Logger
	switch config.AppConfig.LogLevel {
	case "debug":
		logger, _ = zap.NewDevelopment()
	default:
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync() // Make sure the buffer is flushed before the program exits

	// No signing secret means every session this process issued would be
	// forgeable with a published default. Refuse to start instead.
	if config.AppConfig.JwtSecret == "" {
		logger.Fatal("jwt_secret is not configured; set MYBLOG_JWT_SECRET or add it to config.yaml")
	}

	issuer, err := auth.NewTokenIssuer(
		[]byte(config.AppConfig.JwtSecret),
		time.Duration(config.AppConfig.TokenTTLHours)*time.Hour,
	)
	if err != nil {
		logger.Fatal("Failed to construct token issuer", zap.Error(err))
	}

	db := database.InitDB()

	host := media.NewCloudinaryHost(
		config.AppConfig.CloudName,
		config.AppConfig.CloudAPIKey,
		config.AppConfig.CloudAPISecret,
		config.AppConfig.MediaFolder,
		logger.Sugar(),
	)
	resolver := media.NewResolver(config.AppConfig.MediaFolder)

	userRepo := repositories.NewUserRepository(db)
	postRepo := repositories.NewPostRepository(db)
	userService := services.NewUserService(userRepo, issuer)
	postService := services.NewPostService(postRepo, host, resolver)
	userController := controllers.NewUserController(userService, issuer)
	postController := controllers.NewPostController(postService, issuer)

	container := restful.NewContainer()
	container.Filter(RequestLogger(logger))

	authWS := new(restful.WebService)
	userController.RegisterRoutes(authWS)
	container.Add(authWS)

	postWS := new(restful.WebService)
	postController.RegisterRoutes(postWS)
	container.Add(postWS)

	// The browser client lives on another origin and sends the session
	// cookie cross-site, so CORS must allow credentials.
	cors := restful.CrossOriginResourceSharing{
		AllowedDomains: config.AppConfig.AllowedOrigins,
		AllowedHeaders: []string{"Content-Type", "Accept"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CookiesAllowed: true,
		Container:      container,
	}
	container.Filter(cors.Filter)
	container.Filter(container.OPTIONSFilter)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}))

	addr := fmt.Sprintf(":%d", config.AppConfig.HTTPPort)
	logger.Info("Starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, container); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
