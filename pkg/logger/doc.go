// Package logger builds *slog.Logger instances for the billing service.
//
// New applies functional options on top of production-safe defaults (JSON,
// info level, stdout) and wraps the resulting handler so the registered
// ContextExtractor callbacks run on every record. The
// request id, tenant id and user id extractors exported by the requestid,
// tenant and session packages plug in here so that handlers only log the
// message and the attributes specific to the call site.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billingkit"),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//			session.LoggerExtractor(),
//		),
//	)
//	log.InfoContext(ctx, "invoice paid", logger.Component("reconciler"))
//
// The attribute helpers in attr.go keep key names consistent across packages.
package logger
