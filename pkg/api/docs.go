// Package api provides the HTTP surface of bootstrapoor.
//
//	@title						bootstrapoor API
//	@version					1.0
//	@description				bootstrapoor API document
//
//	@contact.name				ethPandaOps
//	@contact.url				https://github.com/ethpandaops/bootstrapoor
//
//	@license.name				MIT
//	@license.url				https://github.com/ethpandaops/bootstrapoor/blob/main/LICENSE
//
//	@host						localhost:3000
//	@BasePath					/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"
//
//	@tag.name					system
//	@tag.description			System information and health
//
//	@tag.name					upload
//	@tag.description			Multipart uploads
package api
