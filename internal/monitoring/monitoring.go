package monitoring

import (
	"net/http"

	nlogger "github.com/neutron-org/neutron-logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const MonitoringLoggerContext = "monitoring"

// Reporter refreshes gauges that are only computed on scrape.
type Reporter interface {
	ReportMetrics()
}

type PromWrapper struct {
	promHandler http.Handler
	reporter    Reporter
	logger      *zap.Logger
}

func NewPromWrapper(logRegistry *nlogger.Registry, reporter Reporter) PromWrapper {
	return PromWrapper{
		promHandler: promhttp.Handler(),
		reporter:    reporter,
		logger:      logRegistry.Get(MonitoringLoggerContext),
	}
}

func (p PromWrapper) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if p.reporter != nil {
		p.reporter.ReportMetrics()
	}
	p.logger.Debug("serving metrics", zap.String("remote_addr", req.RemoteAddr))
	p.promHandler.ServeHTTP(res, req)
}
