// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package session assigns every visitor an anonymous user id.

The id is a random UUID carried in an HS256-signed JWT cookie. The
middleware issues a new cookie when the request has none, or when the
signature, expiry or id claim is invalid. Handlers read the id through
UserID(ctx); Clear expires the cookie.
*/
package session
