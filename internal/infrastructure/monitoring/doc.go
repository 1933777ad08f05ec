/*
Package monitoring provides Prometheus metrics for the broker, the
compositor and the status API.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	metrics.RecordBrokerRequest("request_gpu", "granted", elapsed)
	metrics.SetBrokerState(table.GPUCommitted(), registered)

	timer := monitoring.NewTimer(metrics, "create_surface")
	// ... call the broker ...
	timer.Stop("success")

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

Tests pass a fresh prometheus.NewRegistry so registrations never collide.
*/
package monitoring
