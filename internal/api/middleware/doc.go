// Package middleware provides the status API's HTTP middleware.
//
//   - CORS: lets browser dashboards on listed origins read the API
//   - RateLimit: per-IP token buckets; idle clients are forgotten
//
// Example Usage:
//
//	if h := middleware.CORS(middleware.CORSConfig{AllowOrigins: origins}); h != nil {
//		router.Use(h)
//	}
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
