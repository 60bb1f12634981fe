// Package jwt issues and verifies the signed session tokens the engine hands out on
// login. Tokens are stateless: verification checks signature and temporal claims only
// and never consults a store.
package jwt
