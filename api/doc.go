/*
Package api holds the wire types and server configuration shared by the device
identity HTTP server and its clients.

The identity API is read-only with one exception: a caller may ask the device to
generate a fresh leaf key and return a certificate signing request for it. Private
keys are never served.

	GET  /api/device/identity   JSON IdentityResponse
	GET  /api/device/chain      PEM bundle: alias, signer, root
	POST /api/device/leaf-csr   JSON LeafCSRRequest, returns a PEM CSR

Handlers live in the identityhandler subpackage.
*/
package api
