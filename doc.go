// Package katoni is a Go client for the Katoni API.
//
// # Installation
//
//	go get github.com/katoni/katoni-go
//
// # Quick Start
//
// Call the API with a developer key:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"github.com/katoni/katoni-go"
//	)
//
//	func main() {
//		client, err := katoni.NewClient("my-app", "developer-key")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer client.Close()
//
//		resp, err := client.Get("/products", nil, "")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(string(resp.Body))
//	}
//
// # Authentication
//
// Every request carries exactly one credential. A *Token passed to a call is
// sent as "Authorization: Bearer <token>". Without a token the configured
// developer key is added as the "key" query parameter. Stale "key" and
// "access_token" parameters are always removed from request URLs first.
//
// Tokens come from the OAuth2 authorization-code flow on client.OAuth:
//
//	url := client.OAuth.AuthCodeURL("state")
//	tok, err := client.OAuth.Exchange(ctx, code)
//	tok, err = client.OAuth.RefreshIfExpired(ctx, tok)
//
// Storing tokens is up to the caller. Token marshals to JSON and
// ParseAccessToken reads it back, or accepts a bare access token string.
//
// # Errors
//
// Responses with status 400 and above, or with an "error" field in the body,
// are returned as *ProviderError (or a typed wrapper such as *NotFoundError).
// Transport failures are returned as *TransportError. Nothing is retried.
//
// # Links
//
//   - API console: https://developers.katoni.dk/console
package katoni
