// Package model defines the normalized chat message types and the Transport
// interface the agent loop drives. Provider adapters (model/openai,
// model/anthropic) translate between these types and vendor SDK shapes so the
// rest of the codebase never branches on the provider.
package model
