// Package common contains shared constants and sentinel errors used across
// meecokeeper components.
package common

// AuthorizationHeaderName carries the vault or keystore session token on
// outbound API requests.
const AuthorizationHeaderName = "Authorization"

// SubscriptionKeyHeaderName carries the environment subscription key.
const SubscriptionKeyHeaderName = "Meeco-Subscription-Key"

// DefaultPageSize is the page size the API applies when per_page is omitted.
const DefaultPageSize = 200
