// Package identityhandler implements the HTTP handlers and client for the device
// identity API.
//
// Server side:
//
//	handler := identityhandler.NewHandler(deviceHandle, logger)
//	router := chi.NewRouter()
//	handler.RegisterRoutes(router)
//
// Client side:
//
//	client := &identityhandler.Client{ServerAddr: "http://127.0.0.1:8080"}
//	identity, err := client.Identity(ctx)
//
// A client should verify the returned chain against a root it trusts before relying
// on the alias certificate.
package identityhandler
