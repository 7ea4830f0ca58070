package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.HandleFunc("POST /v1/auth/register", handler.Register)
	mux.HandleFunc("POST /v1/auth/login", handler.Login)
	mux.HandleFunc("GET /v1/certificates/{certificateID}/verify", handler.VerifyCertificate)
	mux.HandleFunc("POST /v1/webhooks/zaprite", handler.ZapriteWebhook)
	mux.Handle("POST /v1/analytics/events", OptionalAuth(verifier, http.HandlerFunc(handler.TrackEvent)))
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	authed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, RequireAuth(verifier, fn))
	}

	authed("GET /v1/auth/me", handler.Me)

	authed("GET /v1/players/search", handler.SearchPlayers)
	authed("GET /v1/players/{playerID}", handler.GetPlayer)
	authed("GET /v1/players/{playerID}/sessions", handler.ListPlayerSessions)
	authed("GET /v1/friends", handler.ListFriends)
	authed("POST /v1/friends", handler.AddFriend)

	authed("POST /v1/sessions", handler.UploadSession)

	authed("POST /v1/duels", handler.CreateDuel)
	authed("GET /v1/duels", handler.ListDuels)
	authed("GET /v1/duels/{duelID}", handler.GetDuel)
	authed("POST /v1/duels/{duelID}/respond", handler.RespondDuel)
	authed("POST /v1/duels/{duelID}/cancel", handler.CancelDuel)

	authed("POST /v1/leagues", handler.CreateLeague)
	authed("GET /v1/leagues", handler.ListLeagues)
	authed("GET /v1/leagues/{leagueID}", handler.GetLeague)
	authed("POST /v1/leagues/{leagueID}/join", handler.JoinLeague)
	authed("POST /v1/leagues/{leagueID}/start", handler.StartLeague)
	authed("POST /v1/leagues/{leagueID}/invite", handler.InviteToLeague)
	authed("POST /v1/leagues/invitations/{invitationID}/respond", handler.RespondLeagueInvitation)

	authed("GET /v1/leaderboards", handler.GetLeaderboard)
	authed("POST /v1/leaderboards/refresh", handler.RefreshLeaderboards)
	authed("POST /v1/leaderboards/groups", handler.CreateLeaderboardGroup)

	authed("POST /v1/invitations", handler.CreateInvitation)
	authed("GET /v1/invitations", handler.ListInvitations)
	authed("POST /v1/invitations/{invitationID}/respond", handler.RespondInvitation)

	authed("GET /v1/notifications", handler.ListNotifications)
	authed("GET /v1/notifications/stats", handler.NotificationStats)
	authed("GET /v1/notifications/stream", handler.StreamNotifications)
	authed("POST /v1/notifications/read-all", handler.MarkAllNotificationsRead)
	authed("POST /v1/notifications/{notificationID}/read", handler.MarkNotificationRead)
	authed("DELETE /v1/notifications/{notificationID}", handler.DeleteNotification)

	authed("GET /v1/analytics/dashboard", handler.AnalyticsDashboard)

	authed("POST /v1/subscriptions/checkout", handler.CreateCheckout)
	authed("GET /v1/subscriptions/status", handler.SubscriptionStatus)

	authed("GET /v1/certificates", handler.ListCertificates)
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, cronSecret string) {
	mux.Handle("POST /v1/internal/certificates/batch", RequireCronSecret(cronSecret, http.HandlerFunc(handler.RunCertificateBatch)))
	mux.Handle("POST /v1/internal/leaderboards/refresh", RequireCronSecret(cronSecret, http.HandlerFunc(handler.RefreshLeaderboards)))
}
