// Package jwt verifies bearer tokens: signed JSON claim sets carrying an
// expiry and the email used to link a token to an identity.
//
// The package only verifies. Issuance belongs to the upstream identity
// provider; a [Verifier] is configured with exactly one algorithm and its
// public (or shared) key material and rejects everything else.
package jwt
