/*
Package monitoring provides Prometheus metrics for the kernel and its servers.

# Overview

Every kernel owns one Metrics value backed by a private registry, so tests
can boot many kernels in one process without duplicate registration panics.

# Features

- ITC system call counts by operation and result
- Client invoke retries by service and reason
- Server request counts and handling latency
- Page faults by outcome and frames in use
- Live threads, thread exits and registered services
- Debug API request metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, itc.ServiceMM)
	// ... handle request ...
	timer.Stop("ok")

# Metrics Endpoint

	handler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	router.GET("/metrics", gin.WrapH(handler))
*/
package monitoring
