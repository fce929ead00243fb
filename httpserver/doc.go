/*
Package httpserver runs the device identity HTTP API.

Routes:

	GET  /api/device/identity
	GET  /api/device/chain
	POST /api/device/leaf-csr
	GET  /livez
	GET  /readyz
	GET  /drain
	GET  /undrain

Every request gets an X-Request-Id (the caller's or a fresh UUID), is logged with
the flashbots httplogger middleware and is counted in Prometheus metrics served on
a separate listener.

/drain marks the server not ready so load balancers stop routing to it before
shutdown; /undrain reverses it.
*/
package httpserver
