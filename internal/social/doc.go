// Package social is the HTTP client for the social backend's REST API.
//
// # Overview
//
// Client is a thin, typed wrapper over the backend's endpoints under /api.
// It holds no state beyond its transport settings; caching and refresh
// decisions belong to the state and refresh packages.
//
// # Endpoints
//
//	GET    /users                               ListUsers
//	GET    /users/{id}                          GetUser
//	POST   /posts                               CreatePost
//	GET    /posts/feed/{userId}                 Feed
//	GET    /posts/user/{userId}                 UserPosts
//	POST   /follows/follow                      Follow
//	POST   /follows/unfollow                    Unfollow
//	GET    /follows/{userId}/following          Following
//	GET    /follows/{userId}/followers          Followers
//	GET    /notifications/{userId}              Notifications
//	GET    /notifications/{userId}/unread       UnreadNotifications
//	GET    /notifications/{userId}/unread-count UnreadCount
//	POST   /notifications/{id}/read             MarkRead
//	DELETE /notifications/{id}                  DeleteNotification
//
// # Transport
//
// NewClient accepts a full base URL or a bare host:port, which gets the http
// scheme and the /api path. Requests share one token-bucket limiter
// (WithRateLimit) that honours context cancellation while waiting, carry an
// X-Request-ID header for correlating with backend logs, and are recorded on
// a metrics.Recorder by operation and status. There are no retries.
//
// # Wire format
//
// Timestamps are epoch milliseconds and decode into Millis. The notification
// read flag arrives as "isRead" from some backends and "read" from others;
// both are accepted. Notification types outside FOLLOW and POST are carried
// through unchanged.
//
// # Errors
//
// Every failure is an *Error carrying a Kind, so callers branch with KindOf
// or IsKind instead of parsing messages:
//
//   - KindTransport: the backend could not be reached or the context ended
//   - KindServer: any 5xx answer
//   - KindNotFound: 404 or code NOT_FOUND
//   - KindBadRequest: other 4xx answers without a recognised conflict
//   - KindDecode: a 2xx answer whose body is not the expected JSON
//   - KindAlreadyFollowing, KindSelfFollow, KindNotFollowing: follow-graph
//     conflicts, reported by IsConflict
//
// Conflicts are recognised from an explicit "code" field first, then the
// HTTP status, and finally the message texts the existing backend sends
// with a plain 400. That message matching lives only in classify.
package social
