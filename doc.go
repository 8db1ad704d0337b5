// Package basehub is a Go client for self-hosted Basehub backends. It wraps
// the HTTP and WebSocket API behind chainable abstractions: session
// management with automatic token refresh, a fluent query builder over
// tabular data, bucket/file storage, realtime channel subscriptions, and
// cloud-function invocation.
//
//	cfg, _ := config.FromEnv()
//	client, err := basehub.New(cfg)
//	if err != nil {
//		// ...
//	}
//	if _, err := client.Auth.Login(ctx, "dev@example.com", "secret"); err != nil {
//		// ...
//	}
//	rows, err := client.Table("articles").
//		Where(query.Eq("author_id", 42)).
//		OrderBy("created_at", query.Descending).
//		PageSize(20).
//		Select(ctx)
package basehub
