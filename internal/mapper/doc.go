// Package mapper provides the OIDC protocol mappers that contribute audiences
// to access tokens and introspection responses.
package mapper

// TokenMapperCategory is the display category shared by the token mappers
const TokenMapperCategory = "Token Mapper"
