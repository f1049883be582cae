package tinystore

import "log/slog"

// Navigator moves the host application to a target (a route, a screen, a
// URL). Stores expose it through [Store.Navigate] so that code holding only
// a store can trigger navigation.
type Navigator func(target string)

// unwiredNavigator stands in until a real navigator is injected with
// [WithNavigator]. It logs and returns, so early calls during bootstrap
// never crash an unrelated code path.
func unwiredNavigator(logger *slog.Logger, store string) Navigator {
	return func(target string) {
		logger.Warn("navigator not configured",
			"store", store,
			"target", target,
		)
	}
}
