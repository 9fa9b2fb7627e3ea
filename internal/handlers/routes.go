package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Accounts: deps.Accounts, Tokens: deps.Tokens, DevMode: deps.DevMode, Limiter: deps.LoginLimiter}
	jobs := JobHandler{Accounts: deps.Accounts, Tokens: deps.Tokens, Jobs: deps.Jobs}
	upload := UploadHandler{Accounts: deps.Accounts, Tokens: deps.Tokens, Files: deps.Files, Storage: deps.Storage, MaxSize: deps.MaxUploadSize}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/auth/login", auth.Login)
	mux.HandleFunc("/api/auth/me", auth.Me)
	mux.HandleFunc("/api/detect", jobs.Detect)
	mux.HandleFunc("/api/detect/status/", jobs.DetectStatus)
	mux.HandleFunc("/api/enhance", jobs.Enhance)
	mux.HandleFunc("/api/enhance/status/", jobs.EnhanceStatus)
	mux.HandleFunc("/api/upload", upload.Upload)
	mux.HandleFunc("/api/upload/files/", upload.FileInfo)

	if deps.Stream != nil {
		mux.Handle("/api/stream", deps.Stream)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts      AccountStore
	Tokens        TokenManager
	Jobs          JobService
	Files         FileStore
	Storage       ObjectStorage
	Stream        http.Handler
	LoginLimiter  RateLimiter
	DevMode       bool
	MaxUploadSize int64
}
