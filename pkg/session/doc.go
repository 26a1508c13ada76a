// Package session implements server-side sessions for signed-in users.
//
// A session is created by Manager.SignIn, bound to the client address and
// user agent, and carried by a Transport (cookie for browsers, bearer header
// for API clients). Current looks a session up by token only. Age is enforced
// out of band by SweepExpired, which the background worker runs daily; an
// expired session that has not been swept yet is still accepted.
//
// Auth resolves the signed-in user once per request:
//
//	auth := session.NewAuth(manager, users)
//	router.Use(manager.Middleware)
//	user, ok := auth.CurrentUser(r)
package session
